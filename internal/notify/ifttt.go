package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultIFTTTBase is the IFTTT webhook endpoint.
const DefaultIFTTTBase = "https://maker.ifttt.com"

// DefaultIFTTTEvent is the webhook event name.
const DefaultIFTTTEvent = "opengarage"

type iftttPayload struct {
	Value1 string `json:"value1"`
}

// IFTTT posts notifications to an IFTTT webhook.
type IFTTT struct {
	base   string
	event  string
	key    string
	client *http.Client
}

// IFTTTOption configures the IFTTT channel.
type IFTTTOption func(*IFTTT)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) IFTTTOption {
	return func(ch *IFTTT) {
		if client != nil {
			ch.client = client
		}
	}
}

// WithBaseURL overrides the webhook endpoint.
func WithBaseURL(base string) IFTTTOption {
	return func(ch *IFTTT) {
		if base != "" {
			ch.base = base
		}
	}
}

// WithEvent overrides the webhook event name.
func WithEvent(event string) IFTTTOption {
	return func(ch *IFTTT) {
		if event != "" {
			ch.event = event
		}
	}
}

// NewIFTTT constructs an IFTTT channel for key.
func NewIFTTT(key string, opts ...IFTTTOption) (*IFTTT, error) {
	if key == "" {
		return nil, errors.New("ifttt channel: empty key")
	}
	ch := &IFTTT{
		base:   DefaultIFTTTBase,
		event:  DefaultIFTTTEvent,
		key:    key,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(ch)
	}
	return ch, nil
}

// Name implements Sink.
func (ch *IFTTT) Name() string {
	return "ifttt"
}

func (ch *IFTTT) url() string {
	return ch.base + "/trigger/" + url.PathEscape(ch.event) + "/with/key/" + url.PathEscape(ch.key)
}

// Send posts {"value1": text}.
func (ch *IFTTT) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(iftttPayload{Value1: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.url(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ch.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ifttt channel: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
