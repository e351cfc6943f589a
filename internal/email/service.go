// Package email sends transactional notification emails over SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

const appName = "Smart Orbit"

// Config holds SMTP settings. An empty Host, Port or From leaves the service
// in unconfigured mode and every send returns an error.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

func NewService(config Config) *Service {
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   smtp.PlainAuth("", config.Username, config.Password, config.Host),
	}
}

func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) fromHeader() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	return s.config.From
}

// SendEmail sends a plain-text message.
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromHeader())
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(body)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// SendHTMLEmail sends a multipart/alternative message with a plain-text
// fallback part.
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	const boundary = "boundary-orbit"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromHeader())
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString("Please view this email in an HTML-capable client.\r\n\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// AssignmentData fills the lead-assignment template.
type AssignmentData struct {
	AppName      string
	UserName     string
	CustomerName string
	LeadURL      string
}

// ApprovalData fills the visit-approval template.
type ApprovalData struct {
	AppName        string
	UserName       string
	RequirementURL string
}

// SendLeadAssignedEmail notifies a salesperson of a newly assigned lead.
func (s *Service) SendLeadAssignedEmail(to, userName, customerName, leadURL string) error {
	html, err := renderTemplate(leadAssignedTmpl, AssignmentData{
		AppName:      appName,
		UserName:     userName,
		CustomerName: customerName,
		LeadURL:      leadURL,
	})
	if err != nil {
		return fmt.Errorf("render lead assigned template: %w", err)
	}
	subject := fmt.Sprintf("New lead assigned: %s", customerName)
	return s.SendHTMLEmail([]string{to}, subject, html)
}

// SendVisitApprovedEmail notifies an architect that their visit data was
// approved and merged into the requirement.
func (s *Service) SendVisitApprovedEmail(to, userName, requirementURL string) error {
	html, err := renderTemplate(visitApprovedTmpl, ApprovalData{
		AppName:        appName,
		UserName:       userName,
		RequirementURL: requirementURL,
	})
	if err != nil {
		return fmt.Errorf("render visit approved template: %w", err)
	}
	return s.SendHTMLEmail([]string{to}, "Your site visit was approved", html)
}

func renderTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var (
	leadAssignedTmpl  = template.Must(template.New("leadAssigned").Parse(emailShellTop + leadAssignedBody + emailShellBottom))
	visitApprovedTmpl = template.Must(template.New("visitApproved").Parse(emailShellTop + visitApprovedBody + emailShellBottom))
)

const emailShellTop = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #1f6f54; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #1f6f54; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #1f6f54; }
    </style>
</head>
<body>
    <div class="header"><h1>{{.AppName}}</h1></div>
    <h2>Hi {{.UserName}},</h2>
`

const emailShellBottom = `
</body>
</html>`

const leadAssignedBody = `
    <p>The lead for <strong>{{.CustomerName}}</strong> has been assigned to you. Please reach out to the customer and schedule a site visit.</p>
    <p><a href="{{.LeadURL}}" class="button">Open Lead</a></p>
    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.LeadURL}}</p>
    <div class="footer"><p>You are receiving this because leads are routed to you in {{.AppName}}.</p></div>`

const visitApprovedBody = `
    <p>Your site visit data has been reviewed and approved. The captured details are now part of the customer requirement.</p>
    <p><a href="{{.RequirementURL}}" class="button">View Requirement</a></p>
    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.RequirementURL}}</p>
    <div class="footer"><p>You are receiving this because you captured this site visit in {{.AppName}}.</p></div>`
