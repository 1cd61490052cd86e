package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

func newTestPageClient(maxBytes int64) *PageClient {
	return NewPageClient(NewFetcher(testClient(), testPolicy(0), testLogger()), "gallery-scraper-test/1.0", maxBytes, testLogger())
}

func TestPageClient_FetchPage(t *testing.T) {
	var gotUA atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<html><body>gallery</body></html>"))
	}))
	t.Cleanup(server.Close)

	body, err := newTestPageClient(0).FetchPage(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "<html><body>gallery</body></html>", body)
	assert.Equal(t, "gallery-scraper-test/1.0", gotUA.Load())
}

func TestPageClient_WithUserAgent(t *testing.T) {
	var gotUA atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
	}))
	t.Cleanup(server.Close)

	base := newTestPageClient(0)
	_, err := base.WithUserAgent("site-agent").FetchPage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "site-agent", gotUA.Load())

	_, err = base.FetchPage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "gallery-scraper-test/1.0", gotUA.Load(), "copy must not change the original")
}

func TestPageClient_MaxBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	t.Cleanup(server.Close)

	tests := []struct {
		name     string
		maxBytes int64
		wantErr  bool
	}{
		{"unlimited", 0, false},
		{"exactly at limit", 100, false},
		{"over limit", 99, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := newTestPageClient(tt.maxBytes).FetchPage(context.Background(), server.URL)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Len(t, body, 100)
				return
			}
			require.Error(t, err)
			assert.Empty(t, body, "an oversized page is never handed out cut short")
			assert.ErrorIs(t, err, utils.ErrTransport)
			assert.ErrorIs(t, err, utils.ErrResponseBodyRead)
			assert.Contains(t, err.Error(), "exceeds max size")
		})
	}
}

func TestPageClient_Errors(t *testing.T) {
	server, _ := mockServer(t, []int{http.StatusNotFound})

	tests := []struct {
		name    string
		url     string
		wantIs  error
		wantCat string
	}{
		{"client status", server.URL, utils.ErrClientHTTPError, "HTTP_404"},
		{"bad request url", "http://[::1", utils.ErrRequestCreation, "Internal_RequestCreation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestPageClient(0).FetchPage(context.Background(), tt.url)

			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrTransport)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Equal(t, tt.wantCat, utils.CategorizeError(err))
		})
	}
}
