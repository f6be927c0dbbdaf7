package accounts

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/flosch/pongo2/v6"
)

// Message is an outgoing email
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers account emails
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailerFunc adapts a function to Mailer
type MailerFunc func(ctx context.Context, msg Message) error

// Send implements Mailer
func (f MailerFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

const (
	activationSubject    = "Account activation for {{ app }}"
	passwordResetSubject = "Password reset for {{ app }}"
)

var activationEmailTpl = pongo2.Must(pongo2.FromString(`<html>
<body>
	<p>Hello {{ username }},</p>
	<p>Follow the link below to activate your account:</p>
	<p><a href="{{ link }}">{{ link }}</a></p>
</body>
</html>`))

var passwordResetEmailTpl = pongo2.Must(pongo2.FromString(`<html>
<body>
	<p>Hello {{ username }},</p>
	<p>Follow the link below to reset your password:</p>
	<p><a href="{{ link }}">{{ link }}</a></p>
	<p>The link expires in {{ ttl_minutes }} minutes.</p>
	<p>If you didn't request this, please ignore this email.</p>
</body>
</html>`))

// AccountActivationMessage builds the activation email for account
func AccountActivationMessage(appName, baseURL string, account *Account) (Message, error) {
	link := strings.TrimRight(baseURL, "/") + "/site/activate-account?token=" + account.AccountActivationToken
	return renderMessage(account.Email, activationSubject, activationEmailTpl, pongo2.Context{
		"app":      appName,
		"username": account.Username,
		"link":     link,
	})
}

// PasswordResetMessage builds the reset email for account
func PasswordResetMessage(appName, baseURL string, account *Account, ttlSeconds int) (Message, error) {
	link := strings.TrimRight(baseURL, "/") + "/site/reset-password?token=" + account.PasswordResetToken
	return renderMessage(account.Email, passwordResetSubject, passwordResetEmailTpl, pongo2.Context{
		"app":         appName,
		"username":    account.Username,
		"link":        link,
		"ttl_minutes": ttlSeconds / 60,
	})
}

func renderMessage(to, subject string, tpl *pongo2.Template, data pongo2.Context) (Message, error) {
	subjectTpl, err := pongo2.FromString(subject)
	if err != nil {
		return Message{}, err
	}

	renderedSubject, err := subjectTpl.Execute(data)
	if err != nil {
		return Message{}, err
	}

	body, err := tpl.Execute(data)
	if err != nil {
		return Message{}, err
	}

	return Message{To: to, Subject: renderedSubject, HTML: body}, nil
}

// SMTPConfig holds the SMTP relay settings
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// SMTPMailer sends HTML emails through an SMTP relay
type SMTPMailer struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, sendMail: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	headers := [][2]string{
		{"From", m.cfg.From},
		{"To", msg.To},
		{"Subject", msg.Subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", `text/html; charset="utf-8"`},
	}

	var body strings.Builder
	for _, h := range headers {
		body.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	body.WriteString("\r\n" + msg.HTML)

	return m.sendMail(
		m.cfg.Host+":"+m.cfg.Port,
		auth,
		m.cfg.From,
		[]string{msg.To},
		[]byte(body.String()),
	)
}

// LogMailer writes emails to the logger, used in development
type LogMailer struct {
	logger Logger
}

func NewLogMailer(logger Logger) *LogMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info("====== SENDING EMAIL NOTIFICATION =======\nto: %s\nsubject: %s\n%s", msg.To, msg.Subject, msg.HTML)
	return nil
}
