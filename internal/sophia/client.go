// Package sophia is a minimal client for the Sophia AI conversational API.
package sophia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shawn/tankwatch/internal/apperr"
	"github.com/shawn/tankwatch/internal/auth"
	"github.com/shawn/tankwatch/internal/webhook"
)

// Client posts chat messages to the configured Sophia AI endpoint.
type Client struct {
	httpClient *http.Client
	chatURL    string
	creds      auth.CredentialProvider
}

// New creates a client for chatURL. An empty chatURL yields a client whose
// every call fails with a ConfigurationError.
func New(chatURL string, creds auth.CredentialProvider) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		chatURL:    strings.TrimSpace(chatURL),
		creds:      creds,
	}
}

// Message is one chat turn sent to Sophia.
type Message struct {
	Message        string         `json:"message"`
	ConversationID string         `json:"conversationId,omitempty"`
	Language       string         `json:"language,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
}

// Reply is Sophia's answer.
type Reply struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversationId,omitempty"`
}

// Chat sends msg and returns the reply.
func (c *Client) Chat(ctx context.Context, msg Message) (*Reply, error) {
	if c.chatURL == "" {
		return nil, &apperr.ConfigurationError{Setting: "integrations.sophia_ai.chat_url"}
	}
	if strings.TrimSpace(msg.Message) == "" {
		return nil, apperr.Invalid("message", "is required")
	}
	if msg.Language == "" {
		msg.Language = "pt-BR"
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.creds != nil {
		key, err := c.creds.Credential(ctx, webhook.IntegrationSophiaAI)
		if err != nil {
			return nil, fmt.Errorf("sophia credential: %w", err)
		}
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sophia chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, &apperr.DeliveryError{WebhookID: "sophia-chat", StatusCode: resp.StatusCode, Body: string(raw)}
	}
	var out Reply
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
