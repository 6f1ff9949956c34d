package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"

	"github.com/naggery/naggery/internal/vault"
)

// EmailSender delivers verification links. A false result means delivery
// failed; callers do not roll back the request that produced the token.
type EmailSender interface {
	SendVerification(ctx context.Context, email, token, displayName string) bool
}

// SmsSender delivers one-time codes.
type SmsSender interface {
	SendCode(ctx context.Context, phone, code string) bool
}

// Mailer renders link emails and hands them to a Notifier.
type Mailer struct {
	notifier Notifier
	appName  string
	baseURL  string
	logger   *slog.Logger
}

// NewMailer builds a Mailer. baseURL is the public origin links point to.
func NewMailer(n Notifier, appName, baseURL string, logger *slog.Logger) *Mailer {
	return &Mailer{notifier: n, appName: appName, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

var linkEmail = template.Must(template.New("link").Parse(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h1>{{.App}}</h1>
<p>Hi {{.Name}},</p>
<p>{{.Intro}}</p>
<p><a href="{{.Link}}">{{.Action}}</a></p>
<p>This link will expire in {{.Expiry}}.</p>
<p>{{.Outro}}</p>
</body></html>`))

type linkData struct {
	App, Name, Intro, Link, Action, Expiry, Outro string
}

func (m *Mailer) SendVerification(ctx context.Context, email, token, displayName string) bool {
	return m.sendLink(ctx, KindEmailVerification, email, "/verify-email", token, linkData{
		Name:   displayName,
		Intro:  fmt.Sprintf("Thank you for signing up for %s. Verify your email address to finish creating your account.", m.appName),
		Action: "Verify Email Address",
		Expiry: "24 hours",
		Outro:  "If you didn't create this account, you can safely ignore this email.",
	}, fmt.Sprintf("Verify your %s account", m.appName))
}

func (m *Mailer) sendLink(ctx context.Context, kind, to, path, token string, data linkData, subject string) bool {
	if data.Name == "" {
		data.Name = "User"
	}
	data.App = m.appName
	data.Link = m.baseURL + path + "?token=" + url.QueryEscape(token)

	var html bytes.Buffer
	if err := linkEmail.Execute(&html, data); err != nil {
		m.logger.Error("render email", slog.String("kind", kind), slog.Any("error", err))
		return false
	}
	text := fmt.Sprintf("Hi %s,\n\n%s\n\n%s: %s\n\nThis link will expire in %s.\n\n%s\n", data.Name, data.Intro, data.Action, data.Link, data.Expiry, data.Outro)

	err := m.notifier.Send(ctx, Message{Kind: kind, Destination: to, Subject: subject, Body: text, HTML: html.String()})
	if err != nil {
		m.logger.Error("email delivery failed", slog.String("kind", kind), slog.String("to", vault.MaskEmail(to)), slog.Any("error", err))
		return false
	}
	return true
}

// SMS formats code messages and hands them to a Notifier.
type SMS struct {
	notifier Notifier
	appName  string
	logger   *slog.Logger
}

// NewSMS builds an SmsSender.
func NewSMS(n Notifier, appName string, logger *slog.Logger) *SMS {
	return &SMS{notifier: n, appName: appName, logger: logger}
}

func (s *SMS) SendCode(ctx context.Context, phone, code string) bool {
	body := fmt.Sprintf("Your %s verification code is: %s. This code expires in 10 minutes. Do not share this code with anyone.", s.appName, code)
	if err := s.notifier.Send(ctx, Message{Kind: KindSMSCode, Destination: phone, Body: body}); err != nil {
		s.logger.Error("sms delivery failed", slog.String("to", vault.MaskPhone(phone)), slog.Any("error", err))
		return false
	}
	return true
}
