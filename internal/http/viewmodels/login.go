package viewmodels

// LoginViewData drives the login page.
type LoginViewData struct {
	CSRFToken    string
	Next         string
	ErrorMessage string
	Toast        *ToastViewData
}
