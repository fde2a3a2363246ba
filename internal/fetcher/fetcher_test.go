package fetcher

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestFetch(t *testing.T) {
	t.Parallel()

	t.Run("returns status, body, and elapsed time", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte("<html>ok</html>")); err != nil {
				t.Error(err)
			}
		}))
		defer server.Close()

		f := New(server.Client(), Options{Timeout: 5 * time.Second})
		resp, err := f.Fetch(context.Background(), server.URL, nil, 0)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
		if string(resp.Body) != "<html>ok</html>" {
			t.Errorf("unexpected body %q", resp.Body)
		}
		if resp.Elapsed <= 0 {
			t.Error("expected positive elapsed time")
		}
	})

	t.Run("error statuses are responses, not errors", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer server.Close()

		f := New(server.Client(), Options{})
		resp, err := f.Fetch(context.Background(), server.URL, nil, 0)
		if err != nil {
			t.Fatalf("expected response for 404, got error %v", err)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("merges custom headers over defaults", func(t *testing.T) {
		t.Parallel()

		var gotUA, gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			gotAuth = r.Header.Get("Authorization")
		}))
		defer server.Close()

		f := New(server.Client(), Options{UserAgent: "default-agent"})
		headers := map[string]string{
			"User-Agent":    "custom-agent",
			"Authorization": "Bearer abc",
		}
		if _, err := f.Fetch(context.Background(), server.URL, headers, 0); err != nil {
			t.Fatalf("fetch: %v", err)
		}

		if gotUA != "custom-agent" {
			t.Errorf("expected custom User-Agent, got %q", gotUA)
		}
		if gotAuth != "Bearer abc" {
			t.Errorf("expected Authorization header, got %q", gotAuth)
		}
	})

	t.Run("caps body size", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := w.Write([]byte(strings.Repeat("x", 1024))); err != nil {
				t.Error(err)
			}
		}))
		defer server.Close()

		f := New(server.Client(), Options{MaxBodyBytes: 100})
		resp, err := f.Fetch(context.Background(), server.URL, nil, 0)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if len(resp.Body) != 100 {
			t.Errorf("expected body capped at 100 bytes, got %d", len(resp.Body))
		}
	})

	t.Run("timeout yields KindTimeout", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(2 * time.Second)
		}))
		defer server.Close()

		f := New(server.Client(), Options{})
		_, err := f.Fetch(context.Background(), server.URL, nil, 50*time.Millisecond)
		if err == nil {
			t.Fatal("expected timeout error")
		}

		var fe *Error
		if !errors.As(err, &fe) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if fe.Kind != KindTimeout {
			t.Errorf("expected KindTimeout, got %v", fe.Kind)
		}
	})

	t.Run("refused connection yields KindConnection", func(t *testing.T) {
		t.Parallel()

		// Grab a port that nothing listens on.
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		addr := lis.Addr().String()
		if err := lis.Close(); err != nil {
			t.Fatal(err)
		}

		f := New(&http.Client{}, Options{})
		_, err = f.Fetch(context.Background(), "http://"+addr+"/", nil, 2*time.Second)
		if err == nil {
			t.Fatal("expected connection error")
		}

		var fe *Error
		if !errors.As(err, &fe) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if fe.Kind != KindConnection {
			t.Errorf("expected KindConnection, got %v", fe.Kind)
		}
	})

	t.Run("invalid URL yields KindOther", func(t *testing.T) {
		t.Parallel()

		f := New(&http.Client{}, Options{})
		_, err := f.Fetch(context.Background(), "http://exa mple.test/\x00", nil, time.Second)
		if err == nil {
			t.Fatal("expected error")
		}

		var fe *Error
		if !errors.As(err, &fe) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if fe.Kind != KindOther {
			t.Errorf("expected KindOther, got %v", fe.Kind)
		}
	})
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: KindTimeout},
		{name: "connection refused", err: syscall.ECONNREFUSED, want: KindConnection},
		{name: "connection reset", err: syscall.ECONNRESET, want: KindConnection},
		{name: "dns failure", err: &net.DNSError{Err: "no such host"}, want: KindConnection},
		{name: "generic", err: errors.New("boom"), want: KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorKindString(t *testing.T) {
	t.Parallel()

	if KindTimeout.String() != "timeout" || KindConnection.String() != "connection" || KindOther.String() != "other" {
		t.Error("unexpected ErrorKind string values")
	}
}
