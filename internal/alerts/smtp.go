package alerts

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"time"
)

// SMTPSender sends alerts via email
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
	to       []string
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(host string, port int, user, password, from string, to []string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
		to:       to,
	}
}

// Send sends the alert via email
func (s *SMTPSender) Send(ctx context.Context, payload *AlertPayload) error {
	if len(s.to) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	subject := fmt.Sprintf("Whale %s: $%.2f on %s", payload.Side, payload.ValueUSD, payload.MarketTitle)
	body := s.buildEmailBody(payload)

	message := fmt.Sprintf("From: %s\r\n", s.from)
	message += fmt.Sprintf("To: %s\r\n", s.to[0])
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", s.user, s.password, s.host)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	err := smtp.SendMail(addr, auth, s.from, s.to, []byte(message))
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}

// Verify checks the recipient list and that the SMTP server accepts
// connections
func (s *SMTPSender) Verify(ctx context.Context) error {
	if len(s.to) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	d := net.Dialer{Timeout: 10 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return fmt.Errorf("SMTP handshake: %w", err)
	}
	defer client.Close()

	return nil
}

func (s *SMTPSender) buildEmailBody(payload *AlertPayload) string {
	body := fmt.Sprintf("WHALESCAN ALERT - %s\n", payload.Side)
	body += fmt.Sprintf("═══════════════════════════════════════\n\n")
	body += fmt.Sprintf("A whale trade has been detected:\n\n")
	body += fmt.Sprintf("TRADE DETAILS\n")
	body += fmt.Sprintf("─────────────────────────────────────\n")
	body += fmt.Sprintf("Value:          $%.2f\n", payload.ValueUSD)
	body += fmt.Sprintf("Side:           %s %s\n", payload.Side, payload.Outcome)
	body += fmt.Sprintf("Price:          %.2f\n", payload.Price)
	body += fmt.Sprintf("Shares:         %.2f\n", payload.Size)
	body += fmt.Sprintf("Market:         %s\n", payload.MarketTitle)
	body += fmt.Sprintf("Market URL:     %s\n\n", payload.MarketURL)
	body += fmt.Sprintf("WALLET DETAILS\n")
	body += fmt.Sprintf("─────────────────────────────────────\n")
	body += fmt.Sprintf("Address:        %s\n", payload.WalletAddress)
	body += fmt.Sprintf("First seen:     %s\n", payload.FirstSeenDate)
	body += fmt.Sprintf("Whale trades:   %d\n", payload.WhaleTradeCount)
	if payload.APITradeCount != nil {
		body += fmt.Sprintf("Lifetime trades: %d\n", *payload.APITradeCount)
	} else {
		body += fmt.Sprintf("Lifetime trades: unknown\n")
	}
	if payload.LeaderboardRank != nil {
		body += fmt.Sprintf("Leaderboard:    #%d\n", *payload.LeaderboardRank)
	}
	if settled := payload.SettledCount(); settled > 0 {
		body += fmt.Sprintf("Record:         %d-%d, $%.2f realized\n", payload.Wins, payload.Losses, payload.RealizedPnLUSD)
	}
	body += "\n"

	if flags := buildFlags(payload); len(flags) > 0 {
		body += fmt.Sprintf("FLAGS\n")
		body += fmt.Sprintf("─────────────────────────────────────\n")
		for _, f := range flags {
			body += f + "\n"
		}
		body += "\n"
	}

	body += fmt.Sprintf("TRANSACTION\n")
	body += fmt.Sprintf("─────────────────────────────────────\n")
	body += fmt.Sprintf("Hash:           %s\n", payload.TransactionHash)
	body += fmt.Sprintf("Time:           %s\n\n", payload.Timestamp.Format(time.RFC3339))
	body += fmt.Sprintf("═══════════════════════════════════════\n")
	body += fmt.Sprintf("Environment: %s\n", payload.Environment)
	body += fmt.Sprintf("Generated: %s\n", time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))

	return body
}
