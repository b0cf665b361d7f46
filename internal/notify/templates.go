package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// Rendered is a notification turned into human-readable copy.
type Rendered struct {
	Subject string
	Title   string
	Text    string
	HTML    string
}

type templateData struct {
	Name         string
	Counterparty string
	BookTitle    string
	Badges       string
	TrialEnds    string
	AppURL       string
}

type kindTemplate struct {
	subject string
	title   string
	body    string
	link    string
}

var kindTemplates = map[Kind]kindTemplate{
	KindWelcome: {
		subject: "Welcome to BooksSwap! 📚",
		title:   "Welcome to BooksSwap!",
		body: "Hi {{.Name}},\n\nThanks for joining our community of book lovers! " +
			"Share books you've finished reading, find new ones from neighbours in your postcode " +
			"and earn badges as you swap.\n\nStart your free trial to upload and swap books.",
		link: "Start Free Trial",
	},
	KindSwapRequested: {
		subject: `New swap request for "{{.BookTitle}}"`,
		title:   "New swap request",
		body: "Hi {{.Name}},\n\n{{.Counterparty}} wants to swap for your book \"{{.BookTitle}}\".\n\n" +
			"Log in to BooksSwap to accept or reject this request.",
		link: "View Request",
	},
	KindSwapAccepted: {
		subject: "Your swap request was accepted! 🎉",
		title:   "Swap request accepted",
		body: "Hi {{.Name}},\n\n{{.Counterparty}} has accepted your swap request for \"{{.BookTitle}}\"!\n\n" +
			"You can now arrange to meet up and complete the swap. Meet in a public place, " +
			"during daylight hours, and let someone know where you're going.",
		link: "View Details",
	},
	KindSwapRejected: {
		subject: "Update on your swap request",
		title:   "Swap request update",
		body: "Hi {{.Name}},\n\nUnfortunately, the swap request for \"{{.BookTitle}}\" was not accepted this time.\n\n" +
			"There are plenty of other books available in your area!",
		link: "Browse Books",
	},
	KindSwapCompleted: {
		subject: "Swap completed! 📚",
		title:   "Swap completed",
		body: "Hi {{.Name}},\n\nYour swap for \"{{.BookTitle}}\" has been marked as complete." +
			"{{if .Badges}}\n\nBadge earned: {{.Badges}}{{end}}\n\nThanks for being part of the BooksSwap community!",
		link: "Find More Books",
	},
	KindTrialEnding: {
		subject: "Your BooksSwap free trial ends soon",
		title:   "Your free trial ends soon",
		body: "Hi {{.Name}},\n\nYour free trial ends {{.TrialEnds}}. After that your subscription " +
			"starts automatically so you can keep swapping with your local community.\n\n" +
			"You can cancel anytime from your dashboard.",
		link: "Manage Subscription",
	},
}

var htmlLayout = htmltemplate.Must(htmltemplate.New("layout").Parse(`<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: #16a34a;">{{.Title}}</h2>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}<p style="margin-top: 24px;"><a href="{{.AppURL}}" style="background: #16a34a; color: white; padding: 12px 24px; text-decoration: none; border-radius: 8px;">{{.Link}}</a></p>
<p style="color: #666; margin-top: 32px; font-size: 14px;">The BooksSwap Team</p>
</div>`))

// Render produces the subject and bodies for msg. appURL is linked from the
// HTML body.
func Render(msg Message, appURL string) (Rendered, error) {
	kt, ok := kindTemplates[msg.Kind]
	if !ok {
		return Rendered{}, fmt.Errorf("no template for notification kind %q", msg.Kind)
	}

	data := templateData{
		Name:         msg.Recipient.Name,
		Counterparty: msg.CounterpartyName,
		BookTitle:    msg.BookTitle,
		Badges:       strings.Join(msg.Badges, ", "),
		TrialEnds:    "in 2 days",
		AppURL:       appURL,
	}
	if msg.TrialEndsAt != nil {
		data.TrialEnds = "on " + msg.TrialEndsAt.Format("Monday 2 January")
	}

	subject, err := execText(string(msg.Kind)+".subject", kt.subject, data)
	if err != nil {
		return Rendered{}, err
	}
	text, err := execText(string(msg.Kind)+".body", kt.body, data)
	if err != nil {
		return Rendered{}, err
	}

	var html bytes.Buffer
	err = htmlLayout.Execute(&html, struct {
		Title      string
		Paragraphs []string
		AppURL     string
		Link       string
	}{
		Title:      kt.title,
		Paragraphs: strings.Split(text, "\n\n"),
		AppURL:     appURL,
		Link:       kt.link,
	})
	if err != nil {
		return Rendered{}, fmt.Errorf("render html for %s: %w", msg.Kind, err)
	}

	return Rendered{
		Subject: subject,
		Title:   kt.title,
		Text:    text,
		HTML:    html.String(),
	}, nil
}

func execText(name, src string, data templateData) (string, error) {
	tmpl, err := texttemplate.New(name).Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
