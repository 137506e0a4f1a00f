// Package textanalysis is the client for the remote text-analysis service:
// document sentiment and subject/action/object relation extraction. Both
// calls are remote and may fail; callers decide what a failed turn means.
package textanalysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sentiment is the service's judgement of a text.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Relation is one extracted subject/action/object triple.
type Relation struct {
	Subject *RelationPart `json:"subject,omitempty"`
	Action  *Action       `json:"action,omitempty"`
	Object  *RelationPart `json:"object,omitempty"`
}

// RelationPart is a subject or object surface text.
type RelationPart struct {
	Text string `json:"text"`
}

// Action is the verb phrase of a relation.
type Action struct {
	Text string `json:"text"`
	Verb *Verb  `json:"verb,omitempty"`
}

// Verb carries the normalized verb and its tense.
type Verb struct {
	Text  string `json:"text"`
	Tense string `json:"tense"`
}

// Analyzer is the contract the conversation engine depends on.
type Analyzer interface {
	Sentiment(ctx context.Context, text string) (Sentiment, error)
	Relations(ctx context.Context, text string) ([]Relation, error)
}

// Client calls the text-analysis HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a text-analysis client. timeout bounds each call so a
// hung service cannot stall a conversation turn indefinitely.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type analysisRequest struct {
	Text string `json:"text"`
}

type sentimentResponse struct {
	DocSentiment *struct {
		Type Sentiment `json:"type"`
	} `json:"docSentiment"`
	Error string `json:"error,omitempty"`
}

type relationsResponse struct {
	Relations []Relation `json:"relations"`
	Error     string     `json:"error,omitempty"`
}

// Sentiment classifies text as positive, neutral or negative. A response
// with no sentiment block reads as neutral.
func (c *Client) Sentiment(ctx context.Context, text string) (Sentiment, error) {
	var resp sentimentResponse
	if err := c.post(ctx, "/sentiment", text, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("sentiment API error: %s", resp.Error)
	}
	if resp.DocSentiment == nil || resp.DocSentiment.Type == "" {
		return SentimentNeutral, nil
	}
	return resp.DocSentiment.Type, nil
}

// Relations extracts best-effort subject/action/object triples from text.
func (c *Client) Relations(ctx context.Context, text string) ([]Relation, error) {
	var resp relationsResponse
	if err := c.post(ctx, "/relations", text, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("relations API error: %s", resp.Error)
	}
	return resp.Relations, nil
}

func (c *Client) post(ctx context.Context, path, text string, out interface{}) error {
	reqBody, err := json.Marshal(analysisRequest{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
