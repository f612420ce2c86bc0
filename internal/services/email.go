package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/yiback/gatherly/internal/config"
	"github.com/yiback/gatherly/pkg/logger"
)

// Mailer delivers sign-in links.
type Mailer interface {
	SendLoginLink(ctx context.Context, to, link string) error
}

type EmailService struct {
	config config.EmailConfig
}

func NewEmailService(cfg config.EmailConfig) *EmailService {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &EmailService{config: cfg}
}

// SendLoginLink mails a one-time sign-in link. With email disabled the link
// is written to the log so local setups can still sign in.
func (s *EmailService) SendLoginLink(ctx context.Context, to, link string) error {
	if !s.config.Enabled || s.config.Host == "" {
		logger.Info().Str("to", to).Str("link", link).Msg("[Email] disabled, sign-in link not sent")
		return nil
	}
	return s.sendEmail([]string{to}, "Your Gatherly sign-in link", buildLoginBody(link))
}

func buildLoginBody(link string) string {
	var sb strings.Builder
	escaped := html.EscapeString(link)

	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString("<h2>Sign in to Gatherly</h2>")
	sb.WriteString("<p>Click the link below to sign in. It expires in 15 minutes and can be used once.</p>")
	sb.WriteString(fmt.Sprintf("<p><a href=\"%s\" style=\"display: inline-block; padding: 10px 16px; background: #2563eb; color: #fff; border-radius: 4px; text-decoration: none;\">Sign in</a></p>", escaped))
	sb.WriteString(fmt.Sprintf("<p style=\"color: #555; font-size: 12px;\">Or paste this URL into your browser:<br>%s</p>", escaped))
	sb.WriteString("<hr><p style=\"color: #888; font-size: 12px;\">If you did not request this email you can ignore it.</p>")
	sb.WriteString("</body></html>")

	return sb.String()
}

func (s *EmailService) sendEmail(to []string, subject, body string) error {
	from := s.config.From
	if from == "" {
		from = s.config.Username
	}

	headers := [][2]string{
		{"From", from},
		{"To", strings.Join(to, ",")},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var message strings.Builder
	for _, h := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	var err error
	if s.config.UseTLS {
		err = s.sendEmailTLS(addr, auth, from, to, message.String())
	} else {
		err = smtp.SendMail(addr, auth, from, to, []byte(message.String()))
	}

	if err != nil {
		logger.Errorf("[Email] Failed to send email: %v", err)
		return err
	}

	logger.Infof("[Email] Sent %q to %v", subject, to)
	return nil
}

func (s *EmailService) sendEmailTLS(addr string, auth smtp.Auth, from string, to []string, message string) error {
	tlsConfig := &tls.Config{
		ServerName: s.config.Host,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}

	if _, err := w.Write([]byte(message)); err != nil {
		return err
	}

	return w.Close()
}
