package origin

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(attempts int, timeout time.Duration) *Client {
	return New(Config{Timeout: timeout, Retry: fastRetry(attempts)})
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{})
	if c.config.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", c.config.Timeout)
	}
}

func TestClient_Get_SendsHeaders(t *testing.T) {
	var gotUA, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Write([]byte("body{}"))
	}))
	defer server.Close()

	header := http.Header{}
	header.Set("User-Agent", "Mozilla/5.0 Chrome/123")
	header.Set("Referer", "https://example.com/page")

	resp, err := newTestClient(1, time.Second).Get(context.Background(), server.URL+"/css?family=Roboto", header)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "body{}" {
		t.Errorf("body = %q", body)
	}
	if gotUA != "Mozilla/5.0 Chrome/123" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotReferer != "https://example.com/page" {
		t.Errorf("Referer = %q", gotReferer)
	}
}

func TestClient_Do_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	resp, err := newTestClient(2, time.Second).Get(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestClient_Do_ReturnsFinalServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	resp, err := newTestClient(2, time.Second).Get(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Get should return the final response, got error %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestClient_Do_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resp, err := newTestClient(3, time.Second).Get(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestClient_Do_NetworkErrorExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(2, time.Second).Get(context.Background(), url, nil)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}

	var originErr *OriginError
	if !errors.As(err, &originErr) {
		t.Fatalf("expected OriginError in chain, got %v", err)
	}
	if originErr.Class != ErrorClassNetwork {
		t.Errorf("class = %q, want network", originErr.Class)
	}
}

func TestClient_Do_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	start := time.Now()
	_, err := newTestClient(1, 50*time.Millisecond).Get(context.Background(), server.URL, nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("timeout not enforced, took %v", time.Since(start))
	}
}

func TestClient_Get_InvalidURL(t *testing.T) {
	if _, err := newTestClient(1, time.Second).Get(context.Background(), "://bad", nil); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestClient_SetHTTPClient(t *testing.T) {
	c := New(DefaultConfig())
	custom := &http.Client{}
	c.SetHTTPClient(custom)
	if c.httpClient != custom {
		t.Error("SetHTTPClient did not replace the client")
	}
}
