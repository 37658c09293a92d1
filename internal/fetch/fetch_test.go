package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"newsdesk/internal/resilience"
)

const programHTML = `<!DOCTYPE html>
<html>
<body>
  <ul>
    <li class="item"><a href="/news/1"><span class="tit ellipsis">첫 번째</span></a></li>
  </ul>
</body>
</html>`

func TestHTTPFetcher_Get(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(programHTML))
	}))
	defer server.Close()

	f := NewHTTPFetcher(time.Second, "test-agent")
	html, err := f.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if html != programHTML {
		t.Error("Body does not match expected content")
	}
	if gotUA != "test-agent" {
		t.Errorf("Expected user agent test-agent, got %q", gotUA)
	}
}

func TestHTTPFetcher_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewHTTPFetcher(time.Second, "").Get(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error for HTTP 404")
	}
	if !strings.Contains(err.Error(), "status code 404") {
		t.Errorf("Expected error to mention status code 404, got: %v", err)
	}
	if resilience.IsTransient(err) {
		t.Error("404 should not be transient")
	}
}

func TestHTTPFetcher_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTPFetcher(time.Second, "").Get(context.Background(), server.URL)
	if !resilience.IsTransient(err) {
		t.Errorf("Expected 503 to be transient, got %v", err)
	}
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	if _, err := NewHTTPFetcher(time.Second, "").Get(context.Background(), "invalid-url"); err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestHTTPFetcher_FetchSelector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(programHTML))
	}))
	defer server.Close()

	f := NewHTTPFetcher(time.Second, "")

	if _, err := f.Fetch(context.Background(), server.URL, ".item"); err != nil {
		t.Errorf("Expected selector .item to be found: %v", err)
	}

	_, err := f.Fetch(context.Background(), server.URL, ".box-content")
	if !errors.Is(err, ErrSelectorNotFound) {
		t.Errorf("Expected ErrSelectorNotFound, got %v", err)
	}

	if _, err := f.Fetch(context.Background(), server.URL, ""); err != nil {
		t.Errorf("Expected empty selector to succeed: %v", err)
	}
}

func TestHTTPFetcher_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(programHTML))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewHTTPFetcher(time.Second, "").Get(ctx, server.URL); err == nil {
		t.Error("Expected error for canceled context")
	}
}

func TestHasSelector(t *testing.T) {
	testCases := []struct {
		selector string
		expected bool
	}{
		{"li.item", true},
		{"span.tit.ellipsis", true},
		{"div.news_txt", false},
	}

	for _, tc := range testCases {
		got, err := HasSelector(programHTML, tc.selector)
		if err != nil {
			t.Fatalf("HasSelector(%q) failed: %v", tc.selector, err)
		}
		if got != tc.expected {
			t.Errorf("HasSelector(%q) = %v, want %v", tc.selector, got, tc.expected)
		}
	}
}
