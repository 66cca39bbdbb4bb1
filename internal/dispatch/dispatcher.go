// Package dispatch sends composed alert messages to users and records
// the outbound messaging state.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"airalert-service/internal/config"
	"airalert-service/internal/contacts"
	"airalert-service/internal/logging"
	"airalert-service/internal/providers"
)

// ErrDuplicateRecipients is returned when a batch names the same user
// twice. Counter updates are one increment per user per batch, so
// duplicates must be rejected before anything is sent.
var ErrDuplicateRecipients = errors.New("duplicate record ids in dispatch batch")

// ContactResolver maps a user record id to a delivery address.
type ContactResolver interface {
	Resolve(ctx context.Context, recordID int) (contacts.Contact, error)
}

// CounterStore persists per-user messaging counters.
type CounterStore interface {
	RecordMessagesSent(ctx context.Context, recordIDs []int, sentAt time.Time) error
}

// SendFunc delivers one message body to a contact and returns the
// delivery timestamp.
type SendFunc func(ctx context.Context, contact contacts.Contact, body string) (time.Time, error)

// Dispatcher resolves contacts, sends messages through the provider
// matching each contact's type, and updates messaging counters.
type Dispatcher struct {
	store     CounterStore
	resolver  ContactResolver
	providers map[string]SendFunc
	logger    *logging.Logger
	clock     func() time.Time
}

// New constructs a Dispatcher with the sms and telegram providers wired.
func New(store CounterStore, resolver ContactResolver, cfg config.Config, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		resolver: resolver,
		providers: map[string]SendFunc{
			"sms": func(ctx context.Context, contact contacts.Contact, body string) (time.Time, error) {
				return providers.SendSMS(ctx, cfg, contact, body)
			},
			"telegram": func(ctx context.Context, contact contacts.Contact, body string) (time.Time, error) {
				return providers.SendTelegram(ctx, cfg, contact, body)
			},
		},
		logger: logger,
		clock:  time.Now,
	}
}

// Dispatch sends messages[i] to recordIDs[i] for every i. Contact
// resolution failures skip the affected user and the batch continues;
// every user a send was attempted for gets messages_sent incremented by
// one and last_messaged stamped, whatever the provider outcome. The
// stamp is the latest delivery timestamp the providers reported, or the
// local time when every send in the batch failed. The returned error
// aggregates all per-user failures.
func (d *Dispatcher) Dispatch(ctx context.Context, recordIDs []int, messages []string) error {
	if len(recordIDs) != len(messages) {
		return fmt.Errorf("dispatch batch mismatch: %d record ids, %d messages", len(recordIDs), len(messages))
	}
	if len(recordIDs) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(recordIDs))
	for _, id := range recordIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("record id %d: %w", id, ErrDuplicateRecipients)
		}
		seen[id] = struct{}{}
	}

	var errs []error
	var lastDelivery time.Time
	attempted := make([]int, 0, len(recordIDs))

	for i, id := range recordIDs {
		contact, err := d.resolver.Resolve(ctx, id)
		if err != nil {
			d.logger.Errorf("Contact resolution failed for user %d: %v", id, err)
			errs = append(errs, err)
			continue
		}

		send, ok := d.providers[contact.Type]
		if !ok {
			d.logger.Errorf("No provider for contact type %q (user %d)", contact.Type, id)
			errs = append(errs, fmt.Errorf("user %d: unknown contact type %q", id, contact.Type))
			continue
		}

		attempted = append(attempted, id)
		sentAt, err := send(ctx, contact, messages[i])
		if err != nil {
			d.logger.Errorf("Send failed for user %d via %s: %v", id, contact.Type, err)
			errs = append(errs, err)
			continue
		}
		if sentAt.After(lastDelivery) {
			lastDelivery = sentAt
		}
		d.logger.Infof("Sent message to user %d via %s", id, contact.Type)
	}

	if len(attempted) > 0 {
		if lastDelivery.IsZero() {
			lastDelivery = d.clock()
		}
		if err := d.store.RecordMessagesSent(ctx, attempted, lastDelivery); err != nil {
			errs = append(errs, fmt.Errorf("failed to update messaging counters: %w", err))
		}
	}

	return errors.Join(errs...)
}
