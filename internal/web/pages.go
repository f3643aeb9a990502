// Package web renders the application's server-side pages. Every
// state-changing form embeds the session's CSRF token as a hidden field.
package web

import (
	"html/template"
	"net/http"
)

const layout = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
</head>
<body>
  {{if .Flash}}<p class="flash">{{.Flash}}</p>{{end}}
  {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
  {{template "content" .}}
</body>
</html>`

const loginContent = `{{define "content"}}
<h1>Log in</h1>
<form method="post" action="/login">
  <input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
  <label>Username <input type="text" name="username" required></label>
  <label>Password <input type="password" name="password" required></label>
  <button type="submit">Log in</button>
</form>
<p><a href="/register">Create an account</a></p>
{{end}}`

const registerContent = `{{define "content"}}
<h1>Register</h1>
<form method="post" action="/register">
  <input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
  <label>Username <input type="text" name="username" value="{{.Username}}" required></label>
  <label>Password <input type="password" name="password" required></label>
  <button type="submit">Register</button>
</form>
<p><a href="/login">Back to login</a></p>
{{end}}`

const dashboardContent = `{{define "content"}}
<h1>Dashboard</h1>
<p>Welcome, {{.Username}}.</p>
<form method="post" action="/logout">
  <input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
  <button type="submit">Log out</button>
</form>
{{end}}`

const errorContent = `{{define "content"}}
<h1>Something went wrong</h1>
<p>The server hit an unexpected error. Please try again later.</p>
{{end}}`

// PageData carries everything the templates need. Unused fields stay at
// their zero value for pages that don't show them.
type PageData struct {
	Title     string
	Flash     string
	Error     string
	CSRFToken string
	Username  string
}

// Pages holds the parsed templates.
type Pages struct {
	login     *template.Template
	register  *template.Template
	dashboard *template.Template
	errorPage *template.Template
}

func NewPages() *Pages {
	return &Pages{
		login:     mustParse(loginContent),
		register:  mustParse(registerContent),
		dashboard: mustParse(dashboardContent),
		errorPage: mustParse(errorContent),
	}
}

func mustParse(content string) *template.Template {
	return template.Must(template.Must(template.New("layout").Parse(layout)).Parse(content))
}

// Login renders the login form.
func (p *Pages) Login(w http.ResponseWriter, status int, data PageData) {
	data.Title = "Log in"
	render(w, p.login, status, data)
}

// Register renders the registration form.
func (p *Pages) Register(w http.ResponseWriter, status int, data PageData) {
	data.Title = "Register"
	render(w, p.register, status, data)
}

// Dashboard renders the protected landing page.
func (p *Pages) Dashboard(w http.ResponseWriter, data PageData) {
	data.Title = "Dashboard"
	render(w, p.dashboard, http.StatusOK, data)
}

// ServerError renders the 500 page.
func (p *Pages) ServerError(w http.ResponseWriter) {
	render(w, p.errorPage, http.StatusInternalServerError, PageData{Title: "Server error"})
}

func render(w http.ResponseWriter, t *template.Template, status int, data PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	// The page is already committed; a template error here can only be logged
	// by the caller's middleware.
	_ = t.Execute(w, data)
}
