package notifier

import (
	"bytes"
	"embed"
	"strings"
	"text/template"
)

//go:embed templates/*
var templateFS embed.FS

// Templates holds parsed notification email templates.
type Templates struct {
	html  *template.Template
	plain *template.Template
}

// TemplateData contains data for template rendering.
type TemplateData struct {
	RecipientName string
	Kind          string
	Title         string
	Body          string
	ReferenceID   string
	Timestamp     string
}

// LoadTemplates loads embedded email templates.
func LoadTemplates() (*Templates, error) {
	funcs := template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
	}

	htmlTmpl, err := template.New("notification.html").Funcs(funcs).ParseFS(templateFS, "templates/notification.html")
	if err != nil {
		return nil, err
	}

	plainTmpl, err := template.New("notification.txt").Funcs(funcs).ParseFS(templateFS, "templates/notification.txt")
	if err != nil {
		return nil, err
	}

	return &Templates{
		html:  htmlTmpl,
		plain: plainTmpl,
	}, nil
}

// RenderHTML renders the HTML email body.
func (t *Templates) RenderHTML(data *TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.html.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPlain renders the plain text email body.
func (t *Templates) RenderPlain(data *TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.plain.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// MessageToTemplateData converts a message to template data.
func MessageToTemplateData(msg *Message) TemplateData {
	name := msg.RecipientName
	if name == "" {
		name = "there"
	}
	return TemplateData{
		RecipientName: name,
		Kind:          string(msg.Kind),
		Title:         msg.Title,
		Body:          msg.Body,
		ReferenceID:   msg.ReferenceID,
		Timestamp:     msg.CreatedAt.Format("2006-01-02 15:04:05 MST"),
	}
}
