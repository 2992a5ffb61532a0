// Package email provides the alert sink, which turns Error events into
// SMTP notifications, optionally grouping similar errors into a single
// message.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/mail"
	"sync"

	"golang.org/x/time/rate"
	gomail "gopkg.in/gomail.v2"

	"github.com/c360/provreport/errors"
	"github.com/c360/provreport/group"
	"github.com/c360/provreport/metric"
	"github.com/c360/provreport/provenance"
)

// Config holds configuration for the alert sink
type Config struct {
	Host     string `json:"host"      yaml:"host"`
	Port     int    `json:"port"      yaml:"port"`
	Auth     bool   `json:"auth"      yaml:"auth"`
	Username string `json:"username"  yaml:"username"`
	Password string `json:"password"  yaml:"password"`

	// StartTLS upgrades the session to TLS after connecting. When off,
	// port 465 uses implicit TLS and other ports stay plain.
	StartTLS bool `json:"start_tls" yaml:"start_tls"`

	ContentType string `json:"content_type" yaml:"content_type"`
	Charset     string `json:"charset"      yaml:"charset"`
	XMailer     string `json:"x_mailer"     yaml:"x_mailer"`

	From string   `json:"from" yaml:"from"`
	To   []string `json:"to"   yaml:"to"`
	CC   []string `json:"cc"   yaml:"cc"`
	BCC  []string `json:"bcc"  yaml:"bcc"`

	// SubjectPrefix, when set, is prepended to the subject in brackets.
	SubjectPrefix string `json:"subject_prefix" yaml:"subject_prefix"`

	// SpecificRecipientAttribute names a flow file attribute holding an
	// extra recipient address for that event only.
	SpecificRecipientAttribute string `json:"specific_recipient_attribute" yaml:"specific_recipient_attribute"`

	// GroupSimilarErrors collapses similar errors into one message per
	// group instead of one message per event.
	GroupSimilarErrors bool `json:"group_similar_errors" yaml:"group_similar_errors"`

	// MessagesPerSecond throttles outgoing mail when positive. Zero
	// disables throttling.
	MessagesPerSecond float64 `json:"messages_per_second" yaml:"messages_per_second"`
	MessagesBurst     int     `json:"messages_burst"      yaml:"messages_burst"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"port must be between 1 and 65535")
	}
	if c.From == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "from is required")
	}
	if len(c.To) == 0 && len(c.CC) == 0 && len(c.BCC) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"must specify at least one to, cc or bcc address")
	}
	if c.MessagesPerSecond < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"messages_per_second must not be negative")
	}
	return nil
}

// DefaultConfig returns default configuration for the alert sink
func DefaultConfig() Config {
	return Config{
		Host:        "localhost",
		Port:        25,
		Auth:        true,
		StartTLS:    false,
		ContentType: "text/plain",
		Charset:     "UTF-8",
		XMailer:     "ProvReport",
	}
}

// sender abstracts the SMTP transport so tests can capture messages
// without a live server.
type sender interface {
	Send(m *gomail.Message) error
}

// dialerSender sends through a gomail SMTP dialer.
type dialerSender struct {
	dialer *gomail.Dialer
}

func (d *dialerSender) Send(m *gomail.Message) error {
	return d.dialer.DialAndSend(m)
}

// Sink sends one notification per Error event, or per group of similar
// errors when grouping is enabled. Failures sending one message are
// logged and do not prevent the remaining messages.
type Sink struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metric.Metrics
	limiter *rate.Limiter

	// Sender is created lazily and reused across runs.
	sender   sender
	senderMu sync.Mutex
}

// NewSink creates an alert sink from configuration
func NewSink(cfg Config, logger *slog.Logger, metrics *metric.Metrics) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Sink", "NewSink", "config validation")
	}

	var limiter *rate.Limiter
	if cfg.MessagesPerSecond > 0 {
		burst := cfg.MessagesBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), burst)
	}

	return &Sink{
		cfg:     cfg,
		logger:  logger.With("sink", "email"),
		metrics: metrics,
		limiter: limiter,
	}, nil
}

// Name identifies the sink in logs and metrics
func (s *Sink) Name() string {
	return "email"
}

// Deliver sends notifications for the Error events in the batch.
func (s *Sink) Deliver(ctx context.Context, events []*provenance.Normalized) error {
	errorEvents := make([]*provenance.Normalized, 0, len(events))
	for _, event := range group.Errors(events) {
		if !event.HasIdentity() {
			s.logger.Warn("event has no process group, processor name or component type, ignoring",
				"event_id", event.EventID)
			s.metrics.RecordSinkRecord(s.Name(), metric.OutcomeSkipped)
			continue
		}
		errorEvents = append(errorEvents, event)
	}

	if s.cfg.GroupSimilarErrors {
		for _, g := range group.BySimilarity(errorEvents) {
			if err := s.sendAlert(ctx, g.First(), g.Size()); err != nil {
				s.logger.Error("failed to send error notification",
					"event_id", g.First().EventID, "group_size", g.Size(), "error", err)
				s.metrics.RecordSinkRecord(s.Name(), metric.OutcomeFailed)
				continue
			}
			s.metrics.RecordSinkRecord(s.Name(), metric.OutcomeForwarded)
		}
	} else {
		for _, event := range errorEvents {
			if err := s.sendAlert(ctx, event, 0); err != nil {
				s.logger.Error("failed to send error notification",
					"event_id", event.EventID, "error", err)
				s.metrics.RecordSinkRecord(s.Name(), metric.OutcomeFailed)
				continue
			}
			s.metrics.RecordSinkRecord(s.Name(), metric.OutcomeForwarded)
		}
	}

	s.metrics.RecordDelivery(s.Name(), "ok")
	return nil
}

// sendAlert composes and sends one notification. groupSize is the number
// of similar events collapsed into this message; it only appears in the
// output when grouping is enabled and the group holds more than one.
func (s *Sink) sendAlert(ctx context.Context, event *provenance.Normalized, groupSize int) error {
	to, err := s.recipients(event)
	if err != nil {
		return err
	}

	from, err := validAddresses("from", []string{s.cfg.From})
	if err != nil {
		return err
	}
	cc, err := validAddresses("cc", s.cfg.CC)
	if err != nil {
		return err
	}
	bcc, err := validAddresses("bcc", s.cfg.BCC)
	if err != nil {
		return err
	}

	m := gomail.NewMessage(gomail.SetCharset(s.cfg.Charset))
	m.SetHeader("From", from...)
	m.SetHeader("To", to...)
	if len(cc) > 0 {
		m.SetHeader("Cc", cc...)
	}
	if len(bcc) > 0 {
		m.SetHeader("Bcc", bcc...)
	}
	if s.cfg.XMailer != "" {
		m.SetHeader("X-Mailer", s.cfg.XMailer)
	}
	m.SetHeader("Subject", s.composeSubject(event, groupSize))
	m.SetBody(s.cfg.ContentType, composeBody(event, s.cfg.GroupSimilarErrors, groupSize))

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return errors.WrapTransient(err, "Sink", "sendAlert", "rate limit wait")
		}
	}

	if err := s.ensureSender().Send(m); err != nil {
		return errors.WrapTransient(err, "Sink", "sendAlert", "send mail")
	}

	s.logger.Debug("error notification sent", "event_id", event.EventID)
	return nil
}

// recipients builds the To list: the configured addresses, optionally
// extended with one address taken from the event's attributes. The
// previous attribute mapping wins over the updated one.
func (s *Sink) recipients(event *provenance.Normalized) ([]string, error) {
	to, err := validAddresses("to", s.cfg.To)
	if err != nil {
		return nil, err
	}

	if s.cfg.SpecificRecipientAttribute == "" {
		return to, nil
	}

	value := event.PreviousAttributes[s.cfg.SpecificRecipientAttribute]
	if value == "" {
		value = event.UpdatedAttributes[s.cfg.SpecificRecipientAttribute]
	}
	if value == "" {
		return to, nil
	}

	if _, err := mail.ParseAddress(value); err != nil {
		// Attribute-derived addresses are best effort: the configured
		// recipients still get the notification.
		s.logger.Error("unable to parse recipient address from attribute",
			"attribute", s.cfg.SpecificRecipientAttribute, "value", value)
		return to, nil
	}

	return append(to, value), nil
}

// validAddresses rejects empty and unparsable address strings. The
// failure is scoped to the one message being composed.
func validAddresses(field string, addresses []string) ([]string, error) {
	out := make([]string, 0, len(addresses))
	for _, address := range addresses {
		if address == "" {
			return nil, errors.Wrap(errors.ErrInvalidRecipient, "Sink", "validAddresses",
				fmt.Sprintf("%s address evaluates to an empty string", field))
		}
		if _, err := mail.ParseAddress(address); err != nil {
			return nil, errors.Wrap(errors.ErrInvalidRecipient, "Sink", "validAddresses",
				fmt.Sprintf("unable to parse %s address %q", field, address))
		}
		out = append(out, address)
	}
	return out, nil
}

// ensureSender returns the cached transport, constructing it on first use.
func (s *Sink) ensureSender() sender {
	s.senderMu.Lock()
	defer s.senderMu.Unlock()

	if s.sender != nil {
		return s.sender
	}

	dialer := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if !s.cfg.Auth {
		dialer.Username = ""
		dialer.Password = ""
	}
	if s.cfg.StartTLS {
		// Upgrade the session after EHLO. The dialer runs the STARTTLS
		// handshake when the server advertises it; pinning ServerName
		// keeps certificate verification against the configured host.
		dialer.SSL = false
		dialer.TLSConfig = &tls.Config{ServerName: s.cfg.Host}
	} else {
		// Without the upgrade, the submission-over-TLS port means
		// implicit TLS from the first byte; any other port stays plain.
		dialer.SSL = s.cfg.Port == 465
	}

	s.sender = &dialerSender{dialer: dialer}
	return s.sender
}
