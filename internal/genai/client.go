// Package genai is the client for the GenAI gateway that fronts the embedding
// and text generation models.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	commonhttp "intent-broker/internal/common/http"

	"github.com/xeipuuv/gojsonschema"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }

type Client struct {
	http    *commonhttp.Client
	baseURL string
	apiKey  string
}

func NewClient(baseURL, apiKey string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		http:    commonhttp.NewClient(timeout, maxRetries),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (c *Client) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

type generateRequest struct {
	Messages       []Message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string                 `json:"name"`
	Strict bool                   `json:"strict"`
	Schema map[string]interface{} `json:"schema"`
}

// Generate asks the model for a completion constrained to schema and returns the
// raw text. Callers validate the text with DecodeStructured.
func (c *Client) Generate(ctx context.Context, messages []Message, schemaName string, schema map[string]interface{}) (string, error) {
	req := generateRequest{Messages: messages}
	if schema != nil {
		req.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchema{Name: schemaName, Strict: true, Schema: schema},
		}
	}

	var resp struct {
		Text string `json:"text"`
	}
	if err := c.http.PostJSON(ctx, c.baseURL+"/api/ai/generate", c.headers(), req, &resp); err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", fmt.Errorf("generate: empty response")
	}
	return resp.Text, nil
}

// Embeddings returns the raw vector for input. Shape checks are the caller's job.
func (c *Client) Embeddings(ctx context.Context, input string, dimensions int) ([]float64, error) {
	req := map[string]interface{}{
		"input":      input,
		"dimensions": dimensions,
	}
	var resp struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := c.http.PostJSON(ctx, c.baseURL+"/api/ai/embeddings", c.headers(), req, &resp); err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	return resp.Embedding, nil
}

// DecodeStructured validates text against schema and unmarshals it into out.
// Models sometimes wrap JSON in a markdown fence; that is stripped first.
func DecodeStructured(text string, schema map[string]interface{}, out interface{}) error {
	text = stripFence(text)

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewStringLoader(text))
	if err != nil {
		return fmt.Errorf("parse structured response: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("structured response violates schema: %s", strings.Join(msgs, "; "))
	}
	return json.Unmarshal([]byte(text), out)
}

func stripFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimPrefix(t, "json")
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}
