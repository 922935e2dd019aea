package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

const layoutHTML = `<!DOCTYPE html>
<html><body style="font-family: -apple-system, Segoe UI, Roboto, sans-serif; color: #1f2937; max-width: 600px; margin: 0 auto;">
{{template "content" .}}
<hr style="border: none; border-top: 1px solid #e5e7eb; margin-top: 32px;">
<p style="color: #6b7280; font-size: 12px;">{{.Site}}</p>
</body></html>`

const notificationHTML = `{{define "content"}}
<h2>New contact form submission</h2>
<table cellpadding="6" style="border-collapse: collapse;">
<tr><td><strong>Name</strong></td><td>{{.N.Name}}</td></tr>
<tr><td><strong>Email</strong></td><td><a href="mailto:{{.N.Email}}">{{.N.Email}}</a></td></tr>
{{if .N.Phone}}<tr><td><strong>Phone</strong></td><td>{{.N.Phone}}</td></tr>{{end}}
{{if .N.Company}}<tr><td><strong>Company</strong></td><td>{{.N.Company}}</td></tr>{{end}}
<tr><td><strong>Project type</strong></td><td>{{.N.ProjectType}}</td></tr>
<tr><td><strong>Budget</strong></td><td>{{.N.Budget}}</td></tr>
<tr><td><strong>Timeline</strong></td><td>{{.N.Timeline}}</td></tr>
</table>
<h3>{{.N.Subject}}</h3>
<p style="white-space: pre-wrap;">{{.N.Message}}</p>
{{if .N.AdminURL}}<p><a href="{{.N.AdminURL}}">Open in dashboard</a></p>{{end}}
{{end}}`

const notificationText = `New contact form submission

Name: {{.N.Name}}
Email: {{.N.Email}}
{{if .N.Phone}}Phone: {{.N.Phone}}
{{end}}{{if .N.Company}}Company: {{.N.Company}}
{{end}}Project type: {{.N.ProjectType}}
Budget: {{.N.Budget}}
Timeline: {{.N.Timeline}}

Subject: {{.N.Subject}}

{{.N.Message}}
`

const confirmationHTML = `{{define "content"}}
<h2>Thanks for reaching out, {{.N.Name}}!</h2>
<p>I received your message about <strong>{{.N.Subject}}</strong> and will get back to you soon.</p>
<blockquote style="border-left: 3px solid #e5e7eb; padding-left: 12px; color: #4b5563; white-space: pre-wrap;">{{.N.Message}}</blockquote>
{{end}}`

const confirmationText = `Thanks for reaching out, {{.N.Name}}!

I received your message about "{{.N.Subject}}" and will get back to you soon.

Your message:
{{.N.Message}}
`

const replyHTML = `{{define "content"}}
<p>Hi {{.R.ToName}},</p>
<p style="white-space: pre-wrap;">{{.R.Message}}</p>
<p>Best regards,<br>{{.R.FromName}}</p>
{{end}}`

const replyText = `Hi {{.R.ToName}},

{{.R.Message}}

Best regards,
{{.R.FromName}}
`

var (
	notificationTmpl = mustHTML(notificationHTML)
	confirmationTmpl = mustHTML(confirmationHTML)
	replyTmpl        = mustHTML(replyHTML)

	notificationTextTmpl = texttemplate.Must(texttemplate.New("text").Parse(notificationText))
	confirmationTextTmpl = texttemplate.Must(texttemplate.New("text").Parse(confirmationText))
	replyTextTmpl        = texttemplate.Must(texttemplate.New("text").Parse(replyText))
)

func mustHTML(content string) *htmltemplate.Template {
	t := htmltemplate.Must(htmltemplate.New("layout").Parse(layoutHTML))
	return htmltemplate.Must(t.Parse(content))
}

type templateData struct {
	Site string
	N    ContactNotice
	R    Reply
}

func render(html *htmltemplate.Template, text *texttemplate.Template, data templateData) (string, string, error) {
	var h, t bytes.Buffer
	if err := html.Execute(&h, data); err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}
	if err := text.Execute(&t, data); err != nil {
		return "", "", fmt.Errorf("render text: %w", err)
	}
	return h.String(), t.String(), nil
}

func renderNotification(n ContactNotice, site string) (Message, error) {
	html, text, err := render(notificationTmpl, notificationTextTmpl, templateData{Site: site, N: n})
	if err != nil {
		return Message{}, err
	}
	return Message{
		Subject: fmt.Sprintf("New contact: %s", oneLine(n.Subject)),
		HTML:    html,
		Text:    text,
	}, nil
}

func renderConfirmation(n ContactNotice, site string) (Message, error) {
	html, text, err := render(confirmationTmpl, confirmationTextTmpl, templateData{Site: site, N: n})
	if err != nil {
		return Message{}, err
	}
	return Message{
		Subject: fmt.Sprintf("Thanks for your message, %s", oneLine(n.Name)),
		HTML:    html,
		Text:    text,
	}, nil
}

func renderReply(r Reply, site string) (Message, error) {
	if r.FromName == "" {
		r.FromName = site
	}
	if r.ToName == "" {
		r.ToName = "there"
	}
	html, text, err := render(replyTmpl, replyTextTmpl, templateData{Site: site, R: r})
	if err != nil {
		return Message{}, err
	}
	subject := "Re: " + oneLine(r.OriginalSubject)
	if strings.TrimSpace(r.OriginalSubject) == "" {
		subject = "Re: your message"
	}
	return Message{Subject: subject, HTML: html, Text: text}, nil
}

// oneLine keeps user input from injecting extra mail headers.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
