package captcha

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", srv.URL, 10*time.Millisecond, 2*time.Second, zap.NewNop().Sugar())
}

func TestSolveSuccessAfterNotReady(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test-key", r.Form.Get("key"))
		assert.Equal(t, "base64", r.Form.Get("method"))
		assert.Equal(t, "aW1hZ2U=", r.Form.Get("body"))
		fmt.Fprint(w, "OK|12345")
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12345", r.URL.Query().Get("id"))
		if polls.Add(1) < 3 {
			fmt.Fprint(w, `{"status":0,"request":"CAPCHA_NOT_READY"}`)
			return
		}
		fmt.Fprint(w, `{"status":1,"request":"x7k2p"}`)
	})

	client := newTestClient(t, mux)
	text, err := client.Solve(context.Background(), "aW1hZ2U=")
	require.NoError(t, err)
	assert.Equal(t, "x7k2p", text)
	assert.EqualValues(t, 3, polls.Load(), "not-ready responses should be retried")
}

func TestSolveSubmissionRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ERROR_ZERO_BALANCE")
	})

	client := newTestClient(t, mux)
	_, err := client.Solve(context.Background(), "aW1hZ2U=")

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Contains(t, subErr.Response, "ERROR_ZERO_BALANCE")
}

func TestSolveTerminalProviderError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "OK|12345")
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":0,"request":"ERROR_CAPTCHA_UNSOLVABLE"}`)
	})

	client := newTestClient(t, mux)
	_, err := client.Solve(context.Background(), "aW1hZ2U=")

	var solveErr *SolveError
	require.ErrorAs(t, err, &solveErr)
	assert.Contains(t, solveErr.Response, "ERROR_CAPTCHA_UNSOLVABLE")
}

func TestSolveTimesOutWhenNeverReady(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "OK|12345")
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":0,"request":"CAPCHA_NOT_READY"}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := NewClient("test-key", srv.URL, 5*time.Millisecond, 50*time.Millisecond, zap.NewNop().Sugar())

	_, err := client.Solve(context.Background(), "aW1hZ2U=")
	assert.ErrorIs(t, err, ErrSolveTimeout)
}

func TestSolveHonorsContextCancellation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "OK|12345")
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":0,"request":"CAPCHA_NOT_READY"}`)
	})

	client := newTestClient(t, mux)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := client.Solve(ctx, "aW1hZ2U=")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsImageTooSmall(t *testing.T) {
	err := &SubmissionError{Response: "ERROR: image size is less than 100 bytes"}
	assert.True(t, IsImageTooSmall(err))
	assert.False(t, IsImageTooSmall(&SolveError{Response: "ERROR_CAPTCHA_UNSOLVABLE"}))
	assert.False(t, IsImageTooSmall(nil))
}
