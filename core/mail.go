package core

import (
	"bytes"
	htmltmpl "html/template"
	"net/mail"
)

// htmlLayout wraps plain text bodies for clients that prefer html.
var htmlLayout = htmltmpl.Must(htmltmpl.New("email").Parse(
	`<!DOCTYPE html><html><body style="font-family:sans-serif">` +
		`{{range .Paragraphs}}<p>{{.}}</p>{{end}}` +
		`{{if .Link}}<p><a href="{{.Link}}">{{.Link}}</a></p>{{end}}` +
		`</body></html>`,
))

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain content
		Link    string // optional call to action, appended to the html content

		TextContent string
		HTMLContent string
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills TextContent and HTMLContent from BodyStr.
func (m *EmailMessage) Render() error {
	if m.BodyStr == "" {
		return nil
	}
	m.TextContent = m.BodyStr
	if m.Link != "" {
		m.TextContent += "\n\n" + m.Link
	}

	var buff bytes.Buffer
	data := struct {
		Paragraphs []string
		Link       string
	}{Paragraphs: splitParagraphs(m.BodyStr), Link: m.Link}
	if err := htmlLayout.Execute(&buff, data); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

func splitParagraphs(s string) []string {
	var (
		out  []string
		curr bytes.Buffer
	)
	for _, line := range bytes.Split([]byte(s), []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			if curr.Len() > 0 {
				out = append(out, curr.String())
				curr.Reset()
			}
			continue
		}
		if curr.Len() > 0 {
			curr.WriteByte(' ')
		}
		curr.Write(bytes.TrimSpace(line))
	}
	if curr.Len() > 0 {
		out = append(out, curr.String())
	}
	return out
}
