// Package mail renders outgoing emails and moves them through the broker:
// the API publishes to a durable queue and a background consumer delivers.
package mail

import (
	"bytes"
	"html/template"
	"time"
)

// Message is one outgoing email with an already rendered body.
type Message struct {
	From     string    `json:"from,omitempty"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	QueuedAt time.Time `json:"queued_at"`
}

const verificationSubject = "Verify your email address"

var verificationTmpl = template.Must(template.New("verification").Parse(
	`<p>Hi {{.Name}},</p>
<p>Your verification code is <strong>{{.Code}}</strong>.</p>
<p>It expires in {{.Minutes}} minute{{if ne .Minutes 1}}s{{end}}. If you did not sign up, ignore this email.</p>
`))

// Verification renders the email carrying an email verification code.
func Verification(to, name, code string, ttl time.Duration) (Message, error) {
	// Round up so a sub-minute TTL never reads as 0 minutes.
	minutes := int((ttl + time.Minute - 1) / time.Minute)
	var buf bytes.Buffer
	err := verificationTmpl.Execute(&buf, struct {
		Name    string
		Code    string
		Minutes int
	}{Name: name, Code: code, Minutes: minutes})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: verificationSubject, Body: buf.String()}, nil
}
