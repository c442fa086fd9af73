package backboard

import (
	"context"
	"net/http"
)

// CreateAssistantRequest describes a new assistant.
type CreateAssistantRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Assistant is a persistent Backboard assistant.
type Assistant struct {
	ID   string `json:"assistant_id"`
	Name string `json:"name"`
}

// CreateAssistant provisions a new assistant.
func (c *Client) CreateAssistant(ctx context.Context, in CreateAssistantRequest) (Assistant, error) {
	req, err := jsonRequest("create_assistant", http.MethodPost, "/assistants", in)
	if err != nil {
		return Assistant{}, err
	}

	var out Assistant
	if err := c.do(ctx, req, assistantSchema, &out); err != nil {
		return Assistant{}, err
	}
	return out, nil
}

// ListAssistants returns every assistant visible to the API key.
func (c *Client) ListAssistants(ctx context.Context) ([]Assistant, error) {
	req := request{operation: "list_assistants", method: http.MethodGet, path: "/assistants"}

	out := []Assistant{}
	if err := c.do(ctx, req, assistantListSchema, &out); err != nil {
		return nil, err
	}
	return out, nil
}
