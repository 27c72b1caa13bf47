package alerts

import (
	"context"
	"testing"
	"time"
)

func TestSMTPSenderNoRecipients(t *testing.T) {
	s := NewSMTPSender("smtp.example.com", 587, "user", "pass", "from@example.com", nil)

	payload := &AlertPayload{
		Side:        "BUY",
		MarketTitle: "Will it happen?",
		ValueUSD:    15000,
		Timestamp:   time.Unix(1756600000, 0),
	}

	// An empty recipient list must surface as an error, never a panic:
	// Send runs on a background goroutine where a panic takes the whole
	// process down.
	if err := s.Send(context.Background(), payload); err == nil {
		t.Error("Send with no recipients returned nil, want error")
	}

	if err := s.Verify(context.Background()); err == nil {
		t.Error("Verify with no recipients returned nil, want error")
	}
}
