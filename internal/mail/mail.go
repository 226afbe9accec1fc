// Package mail delivers the nightly summary over SMTP.
package mail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	gomail "github.com/wneessen/go-mail"

	"github.com/signalnine/wptnightly/internal/config"
	"github.com/signalnine/wptnightly/internal/report"
	"github.com/signalnine/wptnightly/internal/result"
)

const signature = "<p>Thanks,<br>WebNN Team</p>"

type Dispatcher struct {
	cfg      config.Mail
	hostname string
	now      func() time.Time
	send     func(ctx context.Context, m *gomail.Msg) error
	log      zerolog.Logger
}

func NewDispatcher(cfg config.Mail, log zerolog.Logger) *Dispatcher {
	host, _ := os.Hostname()
	d := &Dispatcher{
		cfg:      cfg,
		hostname: host,
		now:      time.Now,
		log:      log.With().Str("component", "mail").Logger(),
	}
	d.send = d.dial
	return d
}

// Subject is "<MM/DD> - Nightly WPT WebNN Conformance Test Report by <host>".
func Subject(now time.Time, hostname string) string {
	return fmt.Sprintf("%s - Nightly WPT WebNN Conformance Test Report by %s", now.Format("01/02"), hostname)
}

// Body renders the HTML mail body. An unchanged browser version yields the
// skip notice only.
func Body(s *report.Summary) (string, error) {
	if s.SameVersion {
		return "<p>" + report.SkipNotice + "</p>\n" + signature, nil
	}
	html, err := report.HTML(s)
	if err != nil {
		return "", err
	}
	return html + signature, nil
}

// Compose builds the message. ok is false when there is nothing worth
// sending: a new version without any saved artifact.
func (d *Dispatcher) Compose(s *report.Summary, artifacts []result.Artifact) (m *gomail.Msg, ok bool, err error) {
	if !s.SameVersion && len(artifacts) == 0 {
		return nil, false, nil
	}

	m = gomail.NewMsg()
	if err := m.From(d.cfg.From); err != nil {
		return nil, false, fmt.Errorf("setting from address: %w", err)
	}
	if err := m.To(d.cfg.To...); err != nil {
		return nil, false, fmt.Errorf("setting recipients: %w", err)
	}
	m.Subject(Subject(d.now(), d.hostname))

	body, err := Body(s)
	if err != nil {
		return nil, false, err
	}
	m.SetBodyString(gomail.TypeTextHTML, body)

	if !s.SameVersion {
		for _, a := range artifacts {
			m.AttachFile(a.Path, gomail.WithFileName(filepath.Base(a.Path)))
		}
	}
	return m, true, nil
}

// Send composes and delivers the summary. Every failure is logged and
// reported as false; it never aborts the caller.
func (d *Dispatcher) Send(ctx context.Context, s *report.Summary, artifacts []result.Artifact) bool {
	if !d.cfg.Enabled() {
		d.log.Info().Msg("Mail not configured, skipping")
		return false
	}
	m, ok, err := d.Compose(s, artifacts)
	if err != nil {
		d.log.Error().Err(err).Msg("Composing mail")
		return false
	}
	if !ok {
		d.log.Warn().Msg("None saved CSV result file, no mail sent")
		return false
	}
	if s.SameVersion {
		d.log.Info().Str("version", s.CurrentVersion).Msg(report.SkipNotice)
	}

	d.log.Info().Strs("to", d.cfg.To).Int("attachments", len(artifacts)).Msg("Sending email")
	if err := d.send(ctx, m); err != nil {
		d.log.Error().Err(err).Str("host", d.cfg.Host).Msg("Send mail error")
		return false
	}
	return true
}

func (d *Dispatcher) dial(ctx context.Context, m *gomail.Msg) error {
	opts := []gomail.Option{gomail.WithPort(d.cfg.Port)}
	if d.cfg.TLS {
		opts = append(opts, gomail.WithTLSPortPolicy(gomail.TLSMandatory))
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	}
	if d.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(d.cfg.Username),
			gomail.WithPassword(d.cfg.Password),
		)
	}
	client, err := gomail.NewClient(d.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, m)
}
