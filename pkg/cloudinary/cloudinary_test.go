package cloudinary

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, maxBytes int64) *Service {
	t.Helper()
	svc, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", MaxFetchBytes: maxBytes}, zerolog.Nop())
	require.NoError(t, err)
	return svc
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}

func TestFetchDownloadsURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "%PDF-1.4 body")
	}))
	defer server.Close()

	payload, err := newTestService(t, 0).Fetch(context.Background(), server.URL+"/doc.pdf")
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 body", string(payload))
}

func TestFetchRejectsOversizedAsset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", 32))
	}))
	defer server.Close()

	_, err := newTestService(t, 16).Fetch(context.Background(), server.URL)
	require.ErrorContains(t, err, "exceeds")
}

func TestFetchSurfacesHTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestService(t, 0).Fetch(context.Background(), server.URL)
	require.ErrorContains(t, err, "404")
}

func TestResolvePublicID(t *testing.T) {
	url, err := newTestService(t, 0).resolve("exams/notes-123")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "https://"))
	require.Contains(t, url, "demo")
	require.Contains(t, url, "exams/notes-123")
}

func TestDeliveryURLFollowsResourceType(t *testing.T) {
	svc := newTestService(t, 0)

	raw, err := svc.DeliveryURL("testem/lecture-notes-1700000000", "raw")
	require.NoError(t, err)
	require.Contains(t, raw, "/raw/upload/")
	require.Contains(t, raw, "testem/lecture-notes-1700000000")

	image, err := svc.DeliveryURL("testem/slides-1700000000", "image")
	require.NoError(t, err)
	require.Contains(t, image, "/image/upload/")

	fallback, err := svc.DeliveryURL("testem/slides-1700000000", "")
	require.NoError(t, err)
	require.Contains(t, fallback, "/image/upload/")
}

func TestFetchDownloadsRawAsset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/raw/upload/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, "entropy always increases")
	}))
	defer server.Close()

	payload, err := newTestService(t, 0).Fetch(context.Background(), server.URL+"/demo/raw/upload/testem/summary.txt")
	require.NoError(t, err)
	require.Equal(t, "entropy always increases", string(payload))
}

func TestBuildPublicIDSanitisesName(t *testing.T) {
	id := buildPublicID("My Notes (v2).pdf")
	require.True(t, strings.HasPrefix(id, "My-Notes--v2-"))
}
