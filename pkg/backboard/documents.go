package backboard

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DocumentStatus is the indexing state reported for a document.
type DocumentStatus string

const (
	DocumentIndexed DocumentStatus = "indexed"
	DocumentError   DocumentStatus = "error"
	DocumentFailed  DocumentStatus = "failed"
)

// Failed reports whether indexing ended unsuccessfully.
func (s DocumentStatus) Failed() bool {
	switch DocumentStatus(strings.ToLower(string(s))) {
	case DocumentError, DocumentFailed:
		return true
	}
	return false
}

// Indexed reports whether the document is ready for retrieval.
func (s DocumentStatus) Indexed() bool {
	return strings.EqualFold(string(s), string(DocumentIndexed))
}

type documentResponse struct {
	ID string `json:"document_id"`
}

type documentStatusResponse struct {
	Status DocumentStatus `json:"status"`
}

// UploadDocument attaches a file to the thread and returns its document id.
func (c *Client) UploadDocument(ctx context.Context, threadID, filename string, content []byte) (string, error) {
	body, contentType, err := multipartFile(filename, content)
	if err != nil {
		return "", fmt.Errorf("backboard upload_document: %w", err)
	}

	req := request{
		operation:   "upload_document",
		method:      http.MethodPost,
		path:        "/threads/" + url.PathEscape(threadID) + "/documents",
		body:        body,
		contentType: contentType,
	}

	var out documentResponse
	if err := c.do(ctx, req, documentSchema, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// GetDocumentStatus returns the indexing state of a document.
func (c *Client) GetDocumentStatus(ctx context.Context, documentID string) (DocumentStatus, error) {
	req := request{operation: "document_status", method: http.MethodGet, path: "/documents/" + url.PathEscape(documentID) + "/status"}

	var out documentStatusResponse
	if err := c.do(ctx, req, documentStatusSchema, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func multipartFile(filename string, content []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimetype.Detect(content).String())

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
