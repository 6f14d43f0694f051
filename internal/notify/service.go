// Package notify tells the care team about red alerts outside the queue.
package notify

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/aicare/casemgr/internal/model"
	"github.com/aicare/casemgr/pkg/logger"
)

type Service interface {
	SendCustom(ctx context.Context, to []string, subject string, content string) error
}

// Sender is the part of gomail's dialer the mailer uses.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Mailer struct {
	sender Sender
	from   string
}

func NewMailer(cfg SMTPConfig) *Mailer {
	return &Mailer{
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// NewMailerWithSender is used by tests to capture outgoing messages.
func NewMailerWithSender(sender Sender, from string) *Mailer {
	return &Mailer{sender: sender, from: from}
}

func (m *Mailer) SendCustom(ctx context.Context, to []string, subject string, content string) error {
	if len(to) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", content)
	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// AlertNotifier mails the configured recipients whenever a red alert is raised.
type AlertNotifier struct {
	svc        Service
	recipients []string
	log        *logger.Logger
}

func NewAlertNotifier(svc Service, recipients []string, log *logger.Logger) *AlertNotifier {
	return &AlertNotifier{svc: svc, recipients: recipients, log: log}
}

func (n *AlertNotifier) NotifyRedAlert(ctx context.Context, r *model.Report) error {
	subject := fmt.Sprintf("[RED] %s (%s) scored %g", r.PatientName, r.PatientID, r.OverallScore)

	var b strings.Builder
	fmt.Fprintf(&b, "Report:  %s\n", r.ReportID)
	fmt.Fprintf(&b, "Patient: %s %s\n", r.PatientID, r.PatientName)
	fmt.Fprintf(&b, "Score:   %g\n", r.OverallScore)
	fmt.Fprintf(&b, "Time:    %s\n", r.Timestamp)
	if r.AISummary != "" {
		fmt.Fprintf(&b, "\n%s\n", r.AISummary)
	}

	if err := n.svc.SendCustom(ctx, n.recipients, subject, b.String()); err != nil {
		return err
	}
	n.log.Info("red alert notification sent", "report_id", r.ReportID, "recipients", len(n.recipients))
	return nil
}
