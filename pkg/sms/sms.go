package sms

import (
	"fmt"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Send delivers one SMS via Twilio and returns the delivery timestamp.
func Send(accountSID, authToken, fromNumber, toNumber, body string) (time.Time, error) {
	if !strings.HasPrefix(toNumber, "+") {
		return time.Time{}, fmt.Errorf("invalid phone number: %s", toNumber)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	params := &twilioApi.CreateMessageParams{
		To:   &toNumber,
		From: &fromNumber,
		Body: &body,
	}

	if _, err := client.Api.CreateMessage(params); err != nil {
		return time.Time{}, fmt.Errorf("failed to send SMS to %s: %w", toNumber, err)
	}
	return time.Now(), nil
}
