package email

import (
	"fmt"
	"strings"

	"cityguard/config"
	"cityguard/models"

	"github.com/apex/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender delivers one alert email to one subscriber.
type Sender interface {
	SendAlert(user models.User, incident models.Incident) error
}

// SendGridSender sends alert emails through SendGrid.
type SendGridSender struct {
	config *config.Config
	client *sendgrid.Client
}

// NewSender creates a new SendGrid-backed alert sender
func NewSender(cfg *config.Config) *SendGridSender {
	return &SendGridSender{
		config: cfg,
		client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
	}
}

// SendAlert sends one incident alert email to one subscriber.
func (e *SendGridSender) SendAlert(user models.User, incident models.Incident) error {
	from := mail.NewEmail(e.config.SendGridFromName, e.config.SendGridFromEmail)
	to := mail.NewEmail(user.Username, user.Email)
	subject := fmt.Sprintf("%s Alert: %s", strings.ToUpper(incident.Severity), incident.Title)

	message := mail.NewV3Mail()
	message.SetFrom(from)
	message.Subject = subject

	p := mail.NewPersonalization()
	p.AddTos(to)
	message.AddPersonalizations(p)

	message.AddContent(mail.NewContent("text/plain", e.alertText(user, incident)))
	message.AddContent(mail.NewContent("text/html", e.alertHTML(user, incident)))

	response, err := e.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", user.Email, err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected email to %s (status %d): %s",
			user.Email, response.StatusCode, response.Body)
	}

	log.Infof("Sent alert email for incident %d to %s", incident.ID, user.Email)
	return nil
}

func (e *SendGridSender) alertText(user models.User, incident models.Incident) string {
	summary := incident.AISummary
	if summary == "" {
		summary = incident.Description
	}
	return fmt.Sprintf(
		"Hi %s,\n\nA %s severity incident was reported near %s:\n\n%s\n\n%s\n\nMore info: %s\n\nStay safe,\n%s\n",
		user.Username, incident.Severity, incident.Location, incident.Title, summary,
		incident.URL, e.config.SendGridFromName,
	)
}

func (e *SendGridSender) alertHTML(user models.User, incident models.Incident) string {
	summary := incident.AISummary
	if summary == "" {
		summary = incident.Description
	}
	return fmt.Sprintf(
		`<html><body>
<p>Hi %s,</p>
<p>A <b>%s</b> severity incident was reported near <b>%s</b>:</p>
<h3>%s</h3>
<p>%s</p>
<p><a href="%s">More info</a></p>
<p>Stay safe,<br>%s</p>
</body></html>`,
		user.Username, incident.Severity, incident.Location, incident.Title, summary,
		incident.URL, e.config.SendGridFromName,
	)
}
