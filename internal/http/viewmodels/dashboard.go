package viewmodels

// DashboardViewData drives the dashboard shell. Everything beyond the
// session fields is rendered by the front-end assets, not the gateway.
type DashboardViewData struct {
	CSRFToken string
	UserName  string
	UserEmail string
	AvatarURL string
	Role      string
	// IsAdmin disables the self-service role switcher in the shell.
	IsAdmin bool
	Toast   *ToastViewData
}
