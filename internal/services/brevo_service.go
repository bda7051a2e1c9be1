package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	brevo "github.com/getbrevo/brevo-go/lib"
)

// BrevoService sends operator alert emails through Brevo
type BrevoService struct {
	FromEmail string
	FromName  string
	To        string

	send func(ctx context.Context, email brevo.SendSmtpEmail) error
}

// NewBrevoService creates a new Brevo service instance
func NewBrevoService(apiKey, fromEmail, fromName, to string) *BrevoService {
	cfg := brevo.NewConfiguration()
	cfg.AddDefaultHeader("api-key", apiKey)
	client := brevo.NewAPIClient(cfg)

	return &BrevoService{
		FromEmail: fromEmail,
		FromName:  fromName,
		To:        to,
		send: func(ctx context.Context, email brevo.SendSmtpEmail) error {
			_, _, err := client.TransactionalEmailsApi.SendTransacEmail(ctx, email)
			return err
		},
	}
}

// NotifyIntegrityFailure emails the operator address
func (s *BrevoService) NotifyIntegrityFailure(ctx context.Context, alert IntegrityAlert) error {
	email := brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Name:  s.FromName,
			Email: s.FromEmail,
		},
		To: []brevo.SendSmtpEmailTo{
			{Email: s.To},
		},
		Subject:     "[CRITICAL] Ledger integrity check failed",
		HtmlContent: integrityAlertHTML(alert),
		TextContent: integrityAlertText(alert),
	}

	if err := s.send(ctx, email); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}

func integrityAlertText(alert IntegrityAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ledger integrity check failed at %s\n\n", alert.DetectedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Run: %s\nChecked blocks: %d\n", alert.RunID, alert.CheckedCount)
	if alert.BrokenChainAt != "" {
		fmt.Fprintf(&b, "Chain broken at block %s (sequence %d)\n", alert.BrokenChainAt, alert.BrokenSequence)
	}
	if len(alert.InvalidBlockIDs) > 0 {
		fmt.Fprintf(&b, "Invalid blocks:\n  %s\n", strings.Join(alert.InvalidBlockIDs, "\n  "))
	}
	b.WriteString("\nNo automatic repair was attempted.\n")
	return b.String()
}

func integrityAlertHTML(alert IntegrityAlert) string {
	var items strings.Builder
	for _, id := range alert.InvalidBlockIDs {
		fmt.Fprintf(&items, "<li><code>%s</code></li>", id)
	}
	broken := "none"
	if alert.BrokenChainAt != "" {
		broken = fmt.Sprintf("<code>%s</code> (sequence %d)", alert.BrokenChainAt, alert.BrokenSequence)
	}

	return fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<head>
			<meta charset="UTF-8">
			<title>Ledger integrity alert</title>
		</head>
		<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<div style="background-color: #fff4f4; padding: 30px; border-radius: 10px;">
				<h1 style="color: #c62828; margin-bottom: 20px;">Ledger integrity check failed</h1>
				<p style="color: #333;">Run <code>%s</code> checked %d blocks at %s.</p>
				<p style="color: #333;">Broken link: %s</p>
				<ul>%s</ul>
				<p style="color: #999; font-size: 12px; margin-top: 30px;">No automatic repair was attempted.</p>
			</div>
		</body>
		</html>
	`, alert.RunID, alert.CheckedCount, alert.DetectedAt.UTC().Format(time.RFC3339), broken, items.String())
}
