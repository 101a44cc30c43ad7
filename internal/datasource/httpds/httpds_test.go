package httpds

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(retries int) *Client {
	c := NewClient(Config{MaxRetries: retries, Timeout: 5 * time.Second})
	c.sleep = noSleep
	return c
}

func TestNewClientDefaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{InsecureSkipVerify: true})
	if c.httpClient.Timeout <= 0 || c.initialBackoff <= 0 || c.maxBackoff <= 0 {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if c.maxRetries != 0 {
		t.Fatalf("maxRetries = %d, want 0", c.maxRetries)
	}
	tr, ok := c.httpClient.Transport.(*http.Transport)
	if !ok || !tr.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("transport = %#v, want insecure TLS", c.httpClient.Transport)
	}
}

func TestGetRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	resp, err := newTestClient(3).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, "ok", string(body))
	require.EqualValues(t, 3, hits.Load())
}

func TestGetGivesUp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		status   int
		retries  int
		wantHits int32
	}{
		{name: "retryable status exhausts retries", status: http.StatusTooManyRequests, retries: 2, wantHits: 3},
		{name: "client error is final", status: http.StatusNotFound, retries: 2, wantHits: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			_, err := newTestClient(tc.retries).Get(context.Background(), srv.URL, nil)
			require.Error(t, err)
			require.Contains(t, err.Error(), "status")
			require.Equal(t, tc.wantHits, hits.Load())
		})
	}
}

func TestGetHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(0).Get(ctx, "http://127.0.0.1:1/x", nil)
	require.ErrorIs(t, err, context.Canceled)

	_, err = newTestClient(0).Get(context.Background(), "", nil)
	require.Error(t, err)
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("sleepContext = %v, want context.Canceled", err)
	}
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("sleepContext = %v", err)
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	cases := []struct {
		retry int
		want  time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{64, time.Second},
	}
	for _, tc := range cases {
		if got := backoff(100*time.Millisecond, tc.retry, time.Second); got != tc.want {
			t.Fatalf("backoff(retry=%d) = %v, want %v", tc.retry, got, tc.want)
		}
	}
}

func TestHead(t *testing.T) {
	t.Parallel()

	ranges := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ranges <- r.Header.Get("Range")
		_, _ = io.WriteString(w, "<stata_dta><header>")
	}))
	defer srv.Close()

	b, err := newTestClient(0).Head(context.Background(), srv.URL, 11)
	require.NoError(t, err)
	require.Equal(t, "<stata_dta>", string(b))
	require.Equal(t, "bytes=0-10", <-ranges)

	_, err = newTestClient(0).Head(context.Background(), srv.URL, 0)
	require.Error(t, err)
}

func TestRemoteOpen(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "payload")
	}))
	defer srv.Close()

	r := NewRemote(srv.URL+"/files/a.dta", newTestClient(0))
	r.Dir = t.TempDir()
	rc, err := r.Open(context.Background())
	require.NoError(t, err)

	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "payload", string(b))
	_, err = rc.Seek(0, io.SeekStart)
	require.NoError(t, err)

	name := rc.(*tempFile).Name()
	require.NoError(t, rc.Close())
	_, err = os.Stat(name)
	require.True(t, os.IsNotExist(err), "spooled file is removed on Close")
}

func TestFileName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://example.com/data/survey.sas7bdat":   "survey.sas7bdat",
		"https://example.com/get/auto.dta?token=abc": "auto.dta",
		"http://example.com/a%20b.dta":               "a_b.dta",
	}
	for in, want := range cases {
		if got := FileName(in); got != want {
			t.Fatalf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := FileName("https://example.com/"); len(got) != 40 {
		t.Fatalf("FileName(root) = %q, want a sha1 hex", got)
	}
	if !IsURL("HTTPS://x") || IsURL("/tmp/x.dta") {
		t.Fatalf("IsURL misclassifies")
	}
}
