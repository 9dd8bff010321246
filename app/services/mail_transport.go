package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/badoux/checkmail"
	"github.com/matbaogit/WFAHub-sub000/config"
	"github.com/matbaogit/WFAHub-sub000/repository"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"github.com/sirupsen/logrus"
	mail "gopkg.in/gomail.v2"
)

// DefaultAttachmentName is used when a campaign has an attachment template but no file name
const DefaultAttachmentName = "attachment.html"

var ErrInvalidRecipientAddress = errors.New("invalid recipient address")

// OutgoingEmail is one fully rendered message
type OutgoingEmail struct {
	To             string
	ToName         string
	Subject        string
	HTMLBody       string
	AttachmentHTML *string
	AttachmentName string
}

// MailTransport delivers rendered messages with the sending customer's credentials.
// A returned error means the message was not accepted.
type MailTransport interface {
	Send(ctx context.Context, customerID uint, msg OutgoingEmail) error
}

// NewMailTransport selects the transport named by EMAIL_PROVIDER
func NewMailTransport(cfg config.EmailConfig, settings repository.SMTPSettingRepository, credentials *CredentialCipher, logger logrus.FieldLogger) MailTransport {
	if cfg.Provider == "mock" {
		return NewMockMailTransport()
	}
	return NewSMTPTransport(cfg, settings, logger).WithCredentialCipher(credentials)
}

// smtpAccount is the resolved set of credentials for one send
type smtpAccount struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
	fromName  string
	useTLS    bool
}

// SMTPTransport sends through the customer's own SMTP account, falling back to the default account
type SMTPTransport struct {
	defaults    config.EmailConfig
	settings    repository.SMTPSettingRepository
	credentials *CredentialCipher
	logger      logrus.FieldLogger
	deliver     func(account smtpAccount, m *mail.Message) error
}

// NewSMTPTransport creates a new SMTP transport
func NewSMTPTransport(cfg config.EmailConfig, settings repository.SMTPSettingRepository, logger logrus.FieldLogger) *SMTPTransport {
	return &SMTPTransport{
		defaults: cfg,
		settings: settings,
		logger:   logger,
		deliver:  dialAndSend,
	}
}

func dialAndSend(account smtpAccount, m *mail.Message) error {
	d := mail.NewDialer(account.host, account.port, account.username, account.password)
	d.TLSConfig = &tls.Config{ServerName: account.host}
	// Port 465 is implicit TLS; other ports upgrade with STARTTLS when offered
	d.SSL = account.useTLS && account.port == 465
	return d.DialAndSend(m)
}

// WithCredentialCipher decrypts passwords read from smtp_settings
func (t *SMTPTransport) WithCredentialCipher(c *CredentialCipher) *SMTPTransport {
	t.credentials = c
	return t
}

// Send validates the address, builds the MIME message and delivers it
func (t *SMTPTransport) Send(ctx context.Context, customerID uint, msg OutgoingEmail) error {
	if err := checkmail.ValidateFormat(msg.To); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidRecipientAddress, msg.To, err)
	}

	account, err := t.resolveAccount(ctx, customerID)
	if err != nil {
		return err
	}

	m := buildMessage(account, msg)

	// The outcome of a started SMTP dialog is awaited even after ctx ends
	done := make(chan error, 1)
	go func() {
		done <- t.deliver(account, m)
	}()

	timeout := t.defaults.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return sendResult(err)
	case <-ctx.Done():
		t.logger.WithField("to", msg.To).Debug("send cancelled mid-dialog, waiting for outcome")
	case <-timer.C:
		return fmt.Errorf("could not send email: smtp timeout after %s", timeout)
	}

	select {
	case err := <-done:
		return sendResult(err)
	case <-timer.C:
		return fmt.Errorf("could not send email: smtp timeout after %s", timeout)
	}
}

func sendResult(err error) error {
	if err != nil {
		return fmt.Errorf("could not send email: %w", err)
	}
	return nil
}

func (t *SMTPTransport) resolveAccount(ctx context.Context, customerID uint) (smtpAccount, error) {
	if t.settings != nil {
		setting, err := t.settings.ByCustomerID(ctx, customerID)
		if err != nil {
			return smtpAccount{}, fmt.Errorf("failed to resolve smtp account: %w", err)
		}
		if setting != nil {
			password, err := t.credentials.Open(setting.Password)
			if err != nil {
				return smtpAccount{}, fmt.Errorf("smtp account of customer %d: %w", customerID, err)
			}
			return smtpAccount{
				host:      setting.Host,
				port:      setting.Port,
				username:  setting.Username,
				password:  password,
				fromEmail: setting.FromEmail,
				fromName:  utils.Deref(setting.FromName),
				useTLS:    setting.UseTLS,
			}, nil
		}
	}

	t.logger.WithField("customer_id", customerID).Debug("no smtp setting, using default account")

	return smtpAccount{
		host:      t.defaults.Host,
		port:      t.defaults.Port,
		username:  t.defaults.Username,
		password:  t.defaults.Password,
		fromEmail: t.defaults.FromEmail,
		fromName:  t.defaults.FromName,
		useTLS:    t.defaults.UseTLS,
	}, nil
}

func buildMessage(account smtpAccount, msg OutgoingEmail) *mail.Message {
	m := mail.NewMessage()
	if account.fromName != "" {
		m.SetAddressHeader("From", account.fromEmail, account.fromName)
	} else {
		m.SetHeader("From", account.fromEmail)
	}
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)

	if msg.AttachmentHTML != nil {
		name := msg.AttachmentName
		if name == "" {
			name = DefaultAttachmentName
		}
		content := *msg.AttachmentHTML
		m.Attach(name,
			mail.SetHeader(map[string][]string{"Content-Type": {"text/html; charset=UTF-8"}}),
			mail.SetCopyFunc(func(w io.Writer) error {
				_, err := io.WriteString(w, content)
				return err
			}),
		)
	}

	return m
}

// SentMessage is a message recorded by MockMailTransport
type SentMessage struct {
	CustomerID uint
	Email      OutgoingEmail
	SentAt     time.Time
}

// MockMailTransport records messages instead of sending them.
// FailFor makes Send fail for the given addresses.
type MockMailTransport struct {
	mu      sync.Mutex
	sent    []SentMessage
	failFor map[string]error
	onSend  func(OutgoingEmail)
}

// NewMockMailTransport creates an empty mock transport
func NewMockMailTransport() *MockMailTransport {
	return &MockMailTransport{failFor: make(map[string]error)}
}

// FailFor registers an error returned when sending to address
func (t *MockMailTransport) FailFor(address string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failFor[strings.ToLower(address)] = err
}

// OnSend installs a hook invoked for every attempted send, before the outcome is decided
func (t *MockMailTransport) OnSend(fn func(OutgoingEmail)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSend = fn
}

// Send records msg or returns the registered failure
func (t *MockMailTransport) Send(ctx context.Context, customerID uint, msg OutgoingEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	hook := t.onSend
	failure, fail := t.failFor[strings.ToLower(msg.To)]
	t.mu.Unlock()

	if hook != nil {
		hook(msg)
	}
	if fail {
		return failure
	}

	t.mu.Lock()
	t.sent = append(t.sent, SentMessage{CustomerID: customerID, Email: msg, SentAt: time.Now()})
	t.mu.Unlock()
	return nil
}

// GetSentMessages returns a copy of the recorded messages in send order
func (t *MockMailTransport) GetSentMessages() []SentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SentMessage, len(t.sent))
	copy(out, t.sent)
	return out
}

// Reset clears recorded messages and registered failures
func (t *MockMailTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
	t.failFor = make(map[string]error)
}

var (
	_ MailTransport = (*SMTPTransport)(nil)
	_ MailTransport = (*MockMailTransport)(nil)
)
