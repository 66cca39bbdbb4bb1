// Package contacts resolves user record ids to contact addresses via the
// external contact-lookup service.
package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrContactNotFound is returned when the lookup service has no contact
// for a record id. Callers treat this as a per-user failure, not a batch
// failure.
var ErrContactNotFound = errors.New("contact not found")

// Contact is one user's resolved delivery address. Type selects the
// provider ("sms" or "telegram"); Address is a phone number or chat id.
type Contact struct {
	RecordID int    `json:"record_id"`
	Type     string `json:"type"`
	Address  string `json:"address"`
}

// Client talks to the contact-lookup HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Resolve fetches the contact address for one record id.
func (c *Client) Resolve(ctx context.Context, recordID int) (Contact, error) {
	url := fmt.Sprintf("%s/contacts/%d", c.baseURL, recordID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Contact{}, fmt.Errorf("build contact request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Contact{}, fmt.Errorf("lookup contact for user %d: %w", recordID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Contact{}, fmt.Errorf("user %d: %w", recordID, ErrContactNotFound)
	default:
		return Contact{}, fmt.Errorf("contact lookup returned status %d for user %d", resp.StatusCode, recordID)
	}

	var contact Contact
	if err := json.NewDecoder(resp.Body).Decode(&contact); err != nil {
		return Contact{}, fmt.Errorf("decode contact for user %d: %w", recordID, err)
	}
	if contact.Address == "" {
		return Contact{}, fmt.Errorf("user %d: empty address: %w", recordID, ErrContactNotFound)
	}
	if contact.Type == "" {
		contact.Type = "sms"
	}
	contact.RecordID = recordID
	return contact, nil
}
