package email

import (
	"bytes"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/jon4hz/appmonitor/internal/config"
	mail "github.com/xhit/go-simple-mail/v2"
)

// NotificationService sends account and sync emails.
type NotificationService struct {
	config *config.EmailConfig
	tmpl   *template.Template
	// send delivers a rendered message, replaced in tests.
	send func(to []string, subject, body string) error
}

// PasswordReset is the data of a password reset email.
type PasswordReset struct {
	UserEmail string
	UserName  string
	ResetURL  string
	ExpiresAt time.Time
}

// SyncFailure is the data of an Entra sync failure email.
type SyncFailure struct {
	Recipients   []string
	CompanyName  string
	Error        string
	OccurredAt   time.Time
	DashboardURL string
}

//go:embed templates/*.html
var templatesFS embed.FS

// New creates a new email notification service.
func New(cfg *config.EmailConfig) (*NotificationService, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"humanTime": humanize.Time,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	n := &NotificationService{
		config: cfg,
		tmpl:   t,
	}
	n.send = n.sendEmail
	return n, nil
}

// Enabled reports whether emails are sent at all.
func (n *NotificationService) Enabled() bool {
	return n.config != nil && n.config.Enabled
}

// SendPasswordReset sends a password reset link.
func (n *NotificationService) SendPasswordReset(msg PasswordReset) error {
	if !n.Enabled() {
		log.Debug("Email notifications are disabled, skipping password reset", "to", msg.UserEmail)
		return nil
	}
	if msg.UserEmail == "" {
		log.Warn("User email is empty, skipping password reset", "user", msg.UserName)
		return nil
	}

	body, err := n.render("password_reset.html", msg)
	if err != nil {
		return err
	}
	return n.send([]string{msg.UserEmail}, "[App Monitor] Reset your password", body)
}

// SendSyncFailure tells company admins that the Entra sync failed.
func (n *NotificationService) SendSyncFailure(msg SyncFailure) error {
	if !n.Enabled() {
		log.Debug("Email notifications are disabled, skipping sync failure", "company", msg.CompanyName)
		return nil
	}
	if len(msg.Recipients) == 0 {
		log.Warn("No recipients for sync failure notification", "company", msg.CompanyName)
		return nil
	}

	body, err := n.render("sync_failure.html", msg)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("[App Monitor] Entra ID sync failed for %s", msg.CompanyName)
	return n.send(msg.Recipients, subject, body)
}

func (n *NotificationService) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := n.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to generate email body: %w", err)
	}
	return buf.String(), nil
}

// sendEmail sends an email using go-simple-mail library.
func (n *NotificationService) sendEmail(to []string, subject, body string) error {
	server := mail.NewSMTPClient()
	server.Host = n.config.SMTPHost
	server.Port = n.config.SMTPPort
	server.Username = n.config.Username
	server.Password = n.config.Password

	switch {
	case n.config.UseSSL:
		server.Encryption = mail.EncryptionSSLTLS
	case n.config.UseTLS:
		server.Encryption = mail.EncryptionSTARTTLS
	default:
		server.Encryption = mail.EncryptionNone
	}

	if n.config.InsecureSkipVerify {
		server.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	server.KeepAlive = false
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 10 * time.Second

	smtpClient, err := server.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() {
		if closeErr := smtpClient.Close(); closeErr != nil {
			log.Warn("Failed to close SMTP client", "error", closeErr)
		}
	}()

	fromName := n.config.FromName
	if fromName == "" {
		fromName = "App Monitor"
	}

	email := mail.NewMSG()
	email.SetFrom(fmt.Sprintf("%s <%s>", fromName, n.config.FromEmail))
	email.AddTo(to...)
	email.SetSubject(subject)
	email.SetBody(mail.TextHTML, body)

	if email.Error != nil {
		return fmt.Errorf("failed to build email: %w", email.Error)
	}
	if err := email.Send(smtpClient); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Info("Email sent", "to", to, "subject", subject)
	return nil
}
