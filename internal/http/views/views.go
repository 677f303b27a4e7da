// Package views renders the gateway's two functional pages. The dashboard
// proper is a static front end; these templates only cover the login entry
// point and the authenticated shell around it.
package views

import (
	"html/template"
	"io"

	"github.com/machinepulse/machinepulse/internal/http/viewmodels"
)

var loginPage = template.Must(template.New("login").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Sign in - MachinePulse</title></head>
<body>
{{- with .Toast}}
<p class="toast toast-{{.Category}}">{{.Title}}{{with .Description}} - {{.}}{{end}}</p>
{{- end}}
{{- with .ErrorMessage}}
<p class="error">{{.}}</p>
{{- end}}
<form method="post" action="/login">
  <input type="hidden" name="csrf" value="{{.CSRFToken}}">
  <input type="hidden" name="next" value="{{.Next}}">
  <input type="hidden" name="id_token" id="id_token">
  <button type="submit" data-signin="google">Sign in with Google</button>
</form>
</body>
</html>
`))

var dashboardPage = template.Must(template.New("dashboard").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>MachinePulse</title></head>
<body data-csrf="{{.CSRFToken}}">
{{- with .Toast}}
<p class="toast toast-{{.Category}}">{{.Title}}{{with .Description}} - {{.}}{{end}}</p>
{{- end}}
<header>
  <img src="{{.AvatarURL}}" alt="" width="32" height="32">
  <span>{{.UserName}}</span>
  <span class="role">{{if .Role}}{{.Role}}{{else}}unassigned{{end}}</span>
  {{- if not .IsAdmin}}
  <a href="/role">Change role</a>
  {{- end}}
  <form method="post" action="/logout">
    <input type="hidden" name="csrf" value="{{.CSRFToken}}">
    <button type="submit">Sign out</button>
  </form>
</header>
<main id="app"></main>
</body>
</html>
`))

func LoginPage(w io.Writer, data viewmodels.LoginViewData) error {
	return loginPage.Execute(w, data)
}

func DashboardPage(w io.Writer, data viewmodels.DashboardViewData) error {
	return dashboardPage.Execute(w, data)
}
