package backboard

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Thread is a conversation scoped to one assistant.
type Thread struct {
	ID        string `json:"thread_id"`
	CreatedAt string `json:"created_at"`
}

// CreatedTime parses CreatedAt, returning the zero time when it is absent or malformed.
func (t Thread) CreatedTime() time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, t.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// CreateThread opens a new thread on the assistant.
func (c *Client) CreateThread(ctx context.Context, assistantID string) (Thread, error) {
	req, err := jsonRequest("create_thread", http.MethodPost, "/assistants/"+url.PathEscape(assistantID)+"/threads", struct{}{})
	if err != nil {
		return Thread{}, err
	}

	var out Thread
	if err := c.do(ctx, req, threadSchema, &out); err != nil {
		return Thread{}, err
	}
	return out, nil
}

// DeleteThread removes the thread and its documents.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	req := request{operation: "delete_thread", method: http.MethodDelete, path: "/threads/" + url.PathEscape(threadID)}
	return c.do(ctx, req, nil, nil)
}
