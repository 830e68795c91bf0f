package handlers

import (
	"html/template"
	"net/http"

	"github.com/brizzai/llm-server/internal/auth/models"
	"github.com/brizzai/llm-server/internal/logger"
	"go.uber.org/zap"
)

type loginPageView struct {
	Providers []string
	User      *models.UserInfo
}

type loginErrorView struct {
	Provider  string
	Message   string
	LoginPage string
}

var loginPageTmpl = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Sign in</title></head>
<body>
{{- if .User}}
<p>Signed in as {{if .User.Name}}{{.User.Name}}{{else}}{{.User.ID}}{{end}} via {{.User.Provider}}. <a href="/logout">Sign out</a></p>
{{- end}}
<h1>Sign in</h1>
{{- if .Providers}}
<ul>
{{- range .Providers}}
<li><a href="/login/{{.}}">Continue with {{.}}</a></li>
{{- end}}
</ul>
{{- else}}
<p>No login providers are configured.</p>
{{- end}}
</body>
</html>
`))

var loginErrorTmpl = template.Must(template.New("login_error").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Sign-in failed</title></head>
<body>
<h1>Sign-in with {{.Provider}} failed</h1>
<p>{{.Message}}</p>
<p><a href="{{.LoginPage}}">Try again</a></p>
</body>
</html>
`))

func renderLoginPage(w http.ResponseWriter, view loginPageView) {
	render(w, http.StatusOK, loginPageTmpl, view)
}

func renderLoginError(w http.ResponseWriter, status int, view loginErrorView) {
	render(w, status, loginErrorTmpl, view)
}

func render(w http.ResponseWriter, status int, tmpl *template.Template, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		logger.Error("Failed to render template", zap.String("template", tmpl.Name()), zap.Error(err))
	}
}
