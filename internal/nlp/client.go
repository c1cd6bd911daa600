package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studysync-backend/internal/dialogue"
)

var (
	// ErrExtractionFailed covers transport errors, timeouts, non-2xx
	// statuses and malformed payloads. It never carries partial data.
	ErrExtractionFailed = errors.New("extraction failed")
	ErrEmptyText        = errors.New("text is empty")
)

const (
	extractPath     = "/tasks/nlp"
	maxResponseSize = 1 << 20
)

// Client calls the external NLP service that turns free text into task
// fields.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Extract(ctx context.Context, text, contextID string) (dialogue.Extraction, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return dialogue.Extraction{}, ErrEmptyText
	}

	body, err := json.Marshal(extractRequest{Text: text, UserID: contextID})
	if err != nil {
		return dialogue.Extraction{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+extractPath, bytes.NewReader(body))
	if err != nil {
		return dialogue.Extraction{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return dialogue.Extraction{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return dialogue.Extraction{}, fmt.Errorf("%w: status %d", ErrExtractionFailed, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return dialogue.Extraction{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	return decodeExtraction(raw)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func decodeExtraction(raw []byte) (dialogue.Extraction, error) {
	var parsed extractResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return dialogue.Extraction{}, fmt.Errorf("%w: invalid json: %v", ErrExtractionFailed, err)
	}

	rec := parsed.record()
	if rec == nil {
		return dialogue.Extraction{}, fmt.Errorf("%w: response has no extracted record", ErrExtractionFailed)
	}

	fields := rec.fields()
	missing := parseMissing(parsed.MissingFields)
	if parsed.MissingFields == nil {
		missing = missingOf(fields)
	}

	return dialogue.Extraction{Fields: fields, Missing: missing}, nil
}
