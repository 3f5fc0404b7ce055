// Package notify sends attendee email notifications over SMTP when a
// meeting's lifecycle changes.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new notification service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends a multipart notice with a plain-text fallback part.
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	// Simple multipart message
	boundary := "boundary-teamops"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	// Plain text part (fallback)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	// HTML part
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// MeetingNoticeData holds data for lifecycle notification templates
type MeetingNoticeData struct {
	AppName     string
	MeetingName string
	When        string
	Location    string
}

// SendScheduleNotice tells attendees a meeting has been scheduled (or
// rescheduled after a cancellation).
func (s *Service) SendScheduleNotice(to []string, meetingName string, scheduledAt *time.Time, location string) error {
	data := MeetingNoticeData{
		AppName:     "TeamOps",
		MeetingName: meetingName,
		When:        formatWhen(scheduledAt),
		Location:    location,
	}

	subject := fmt.Sprintf("Meeting scheduled: %s", meetingName)
	html, err := renderTemplate(scheduleNoticeTemplate, data)
	if err != nil {
		return fmt.Errorf("render schedule template: %w", err)
	}

	return s.SendHTMLEmail(to, subject, html)
}

// SendCancellationNotice tells attendees a meeting was cancelled.
func (s *Service) SendCancellationNotice(to []string, meetingName string) error {
	data := MeetingNoticeData{
		AppName:     "TeamOps",
		MeetingName: meetingName,
	}

	subject := fmt.Sprintf("Meeting cancelled: %s", meetingName)
	html, err := renderTemplate(cancellationNoticeTemplate, data)
	if err != nil {
		return fmt.Errorf("render cancellation template: %w", err)
	}

	return s.SendHTMLEmail(to, subject, html)
}

// SendCompletionNotice tells attendees the meeting wrapped up and notes are
// available for review.
func (s *Service) SendCompletionNotice(to []string, meetingName string) error {
	data := MeetingNoticeData{
		AppName:     "TeamOps",
		MeetingName: meetingName,
	}

	subject := fmt.Sprintf("Meeting completed: %s", meetingName)
	html, err := renderTemplate(completionNoticeTemplate, data)
	if err != nil {
		return fmt.Errorf("render completion template: %w", err)
	}

	return s.SendHTMLEmail(to, subject, html)
}

func formatWhen(scheduledAt *time.Time) string {
	if scheduledAt == nil {
		return "time to be determined"
	}
	return scheduledAt.Format("Monday, Jan 2, 2006 at 15:04 MST")
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("notice").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const scheduleNoticeTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Meeting scheduled</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .detail { background: #f5f7fa; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>{{.MeetingName}}</h2>

    <p>You have been invited to a meeting.</p>

    <div class="detail">
        <strong>When:</strong> {{.When}}<br>
        {{if .Location}}<strong>Where:</strong> {{.Location}}{{end}}
    </div>

    <div class="footer">
        <p>You are receiving this because you are on the attendee list for this meeting.</p>
    </div>
</body>
</html>`

const cancellationNoticeTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Meeting cancelled</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .warning { background: #fff3cd; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>{{.MeetingName}}</h2>

    <div class="warning">
        <strong>This meeting has been cancelled.</strong> Any agenda and notes are retained and the meeting can be rescheduled later.
    </div>

    <div class="footer">
        <p>You are receiving this because you were on the attendee list for this meeting.</p>
    </div>
</body>
</html>`

const completionNoticeTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Meeting completed</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>{{.MeetingName}}</h2>

    <p>This meeting has been marked complete. Notes and the meeting summary are now available for review.</p>

    <div class="footer">
        <p>You are receiving this because you attended this meeting.</p>
    </div>
</body>
</html>`
