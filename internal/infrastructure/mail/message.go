package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/sngm3741/contact-form-services/api/internal/contact/domain"
)

// Message is the transport-neutral notification derived from a Submission.
// It is never persisted.
type Message struct {
	From     string
	FromName string
	To       string
	ReplyTo  string
	Subject  string
	HTMLBody string
	TextBody string
	// SubmissionID identifies the stored record for provider-side tagging.
	SubmissionID string
}

var htmlBodyTemplate = template.Must(template.New("contact").Parse(`<h2>You have a new message from your website:</h2>
<hr>
<h3>Details:</h3>
<ul>
  <li><strong>Name:</strong> {{.Name}}</li>
  <li><strong>Email:</strong> <a href="mailto:{{.Email}}">{{.Email}}</a></li>
  <li><strong>Phone:</strong> {{.Phone}}</li>
</ul>
<h3>Message:</h3>
<p>{{.Message}}</p>
`))

// Composer renders submissions into owner notifications. Sender and
// recipient come from deployment configuration only.
type Composer struct {
	from     string
	fromName string
	to       string
}

// NewComposer returns a Composer with a fixed sender and recipient.
func NewComposer(from, fromName, to string) *Composer {
	return &Composer{
		from:     strings.TrimSpace(from),
		fromName: strings.TrimSpace(fromName),
		to:       strings.TrimSpace(to),
	}
}

// Compose builds the message for one submission.
func (c *Composer) Compose(submission domain.Submission) (Message, error) {
	var html bytes.Buffer
	if err := htmlBodyTemplate.Execute(&html, submission); err != nil {
		return Message{}, fmt.Errorf("render notification body: %w", err)
	}

	return Message{
		From:         c.from,
		FromName:     c.fromName,
		To:           c.to,
		ReplyTo:      strings.TrimSpace(submission.Email),
		Subject:      buildSubject(submission.Name),
		HTMLBody:     html.String(),
		TextBody:     buildTextBody(submission),
		SubmissionID: submission.ID,
	}, nil
}

func buildSubject(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	return "New Contact Form Submission from " + name
}

func buildTextBody(submission domain.Submission) string {
	var builder strings.Builder
	builder.WriteString("You have a new message from your website.\n\n")
	builder.WriteString(fmt.Sprintf("Name: %s\n", submission.Name))
	builder.WriteString(fmt.Sprintf("Email: %s\n", submission.Email))
	builder.WriteString(fmt.Sprintf("Phone: %s\n", submission.Phone))
	if !submission.SubmittedAt.IsZero() {
		builder.WriteString(fmt.Sprintf("Submitted: %s\n", submission.SubmittedAt.UTC().Format("2006-01-02 15:04 MST")))
	}
	builder.WriteString("\nMessage:\n")
	builder.WriteString(submission.Message)
	builder.WriteString("\n")
	return builder.String()
}
