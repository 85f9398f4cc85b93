package gateway

import (
	"html/template"
	"io"
)

// LoginPageData is what a renderer needs to draw the login page.
type LoginPageData struct {
	ErrorMessage   string
	WelcomeMessage string
}

// PageRenderer renders the login page. The gateway ships a bare built-in
// renderer; deployments that want styled pages provide their own.
type PageRenderer interface {
	LoginPage(w io.Writer, data LoginPageData) error
}

// defaultRenderer is the unstyled built-in login page.
type defaultRenderer struct {
	tmpl *template.Template
}

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
{{if .WelcomeMessage}}<p>{{.WelcomeMessage}}</p>{{end}}
{{if .ErrorMessage}}<p class="error">{{.ErrorMessage}}</p>{{end}}
<form method="post" action="/auth/login">
<label>Username <input type="text" name="username" autofocus></label>
<label>Password <input type="password" name="password"></label>
<button type="submit">Sign in</button>
</form>
</body>
</html>
`))

// NewDefaultRenderer returns the built-in renderer.
func NewDefaultRenderer() PageRenderer {
	return &defaultRenderer{tmpl: loginTemplate}
}

// LoginPage implements PageRenderer.
func (r *defaultRenderer) LoginPage(w io.Writer, data LoginPageData) error {
	return r.tmpl.Execute(w, data)
}
