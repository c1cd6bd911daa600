package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studysync-backend/internal/dialogue"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIExtractor is an alternative extraction backend that asks an OpenAI
// chat model for the task fields instead of the NLP service.
type OpenAIExtractor struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
}

func NewOpenAI(apiKey, model string, timeout time.Duration) *OpenAIExtractor {
	return &OpenAIExtractor{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: openAIBaseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
	User           string            `json:"user,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIExtractor) Extract(ctx context.Context, text, contextID string) (dialogue.Extraction, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return dialogue.Extraction{}, ErrEmptyText
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: extractSystemPrompt},
			{Role: "user", Content: text},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		User:           contextID,
	})
	if err != nil {
		return dialogue.Extraction{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		strings.TrimRight(c.BaseURL, "/")+"/chat/completions",
		bytes.NewReader(reqBody),
	)
	if err != nil {
		return dialogue.Extraction{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return dialogue.Extraction{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return dialogue.Extraction{}, fmt.Errorf("%w: openai status %d", ErrExtractionFailed, resp.StatusCode)
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return dialogue.Extraction{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	var chat chatResponse
	if err := json.Unmarshal(buf, &chat); err != nil {
		return dialogue.Extraction{}, fmt.Errorf("%w: invalid json: %v", ErrExtractionFailed, err)
	}
	if len(chat.Choices) == 0 {
		return dialogue.Extraction{}, fmt.Errorf("%w: model returned no choices", ErrExtractionFailed)
	}

	var p payload
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &p); err != nil {
		return dialogue.Extraction{}, fmt.Errorf("%w: model output is not json: %v", ErrExtractionFailed, err)
	}

	fields := p.fields()
	return dialogue.Extraction{Fields: fields, Missing: missingOf(fields)}, nil
}
