package providers

import (
	"context"
	"fmt"
	"time"

	"airalert-service/internal/config"
	"airalert-service/internal/contacts"
	"airalert-service/pkg/sms"
)

// SendSMS delivers one message body to the contact's phone number via
// Twilio and returns the delivery timestamp.
func SendSMS(_ context.Context, cfg config.Config, contact contacts.Contact, body string) (time.Time, error) {
	if cfg.SMS.AccountSID == "" || cfg.SMS.AuthToken == "" || cfg.SMS.FromNumber == "" {
		return time.Time{}, fmt.Errorf("missing SMS configuration: AccountSID, AuthToken, or FromNumber is empty")
	}

	sentAt, err := sms.Send(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.FromNumber, contact.Address, body)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to send SMS to user %d: %w", contact.RecordID, err)
	}
	return sentAt, nil
}
