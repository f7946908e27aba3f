package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/utafrali/contactbook/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

type mailTemplate struct {
	file    string
	subject string
	path    string
}

var mailTemplates = map[domain.MailKind]mailTemplate{
	domain.MailConfirmEmail:  {file: "verify_email.html", subject: "Confirm your email", path: "/auth/confirmed_email/"},
	domain.MailResetPassword: {file: "password_form.html", subject: "Password reset form", path: "/auth/new-password/"},
}

// templateData is the data every mail template renders with.
type templateData struct {
	Username string
	Email    string
	Link     string
}

// Renderer turns mail requests into subjects and HTML bodies.
type Renderer struct {
	templates *template.Template
	apiPrefix string
}

// NewRenderer parses the embedded templates. Links in rendered mails point at
// host + apiPrefix.
func NewRenderer(apiPrefix string) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Renderer{
		templates: tmpl,
		apiPrefix: "/" + strings.Trim(apiPrefix, "/"),
	}, nil
}

// Render returns the subject and HTML body for req.
func (r *Renderer) Render(req domain.MailRequest) (subject, body string, err error) {
	mt, ok := mailTemplates[req.Kind]
	if !ok {
		return "", "", fmt.Errorf("unknown mail kind %q", req.Kind)
	}

	link := strings.TrimRight(req.Host, "/") + strings.TrimRight(r.apiPrefix, "/") + mt.path + req.Token

	var buf bytes.Buffer
	err = r.templates.ExecuteTemplate(&buf, mt.file, templateData{
		Username: req.Username,
		Email:    req.Email,
		Link:     link,
	})
	if err != nil {
		return "", "", fmt.Errorf("render %s: %w", mt.file, err)
	}
	return mt.subject, buf.String(), nil
}
