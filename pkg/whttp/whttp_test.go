package whttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendHTTPRequestRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "session=abc", r.Header.Get("Cookie"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(3, 5*time.Second, nil)
	c.RetryWaitMin, c.RetryWaitMax = time.Millisecond, 2*time.Millisecond

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{
		URL:     srv.URL,
		Headers: []WHTTPHeader{{Name: "Cookie", Value: "session=abc"}},
	}, c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(res.Body))
	assert.False(t, res.IsHTML())
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestSendHTTPRequestReturnsLastResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(1, 5*time.Second, nil)
	c.RetryWaitMin, c.RetryWaitMax = time.Millisecond, 2*time.Millisecond

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: srv.URL}, c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestSendHTTPRequestHTMLTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><head><title>\n  Central Authentication Service\r\n</title></head><body></body></html>"))
	}))
	defer srv.Close()

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: srv.URL}, NewClient(0, time.Second, nil))
	require.NoError(t, err)
	assert.True(t, res.IsHTML())
	assert.Equal(t, "Central Authentication Service", res.HTTPTitle)
}

func TestSendHTTPRequestHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SendHTTPRequest(ctx, &WHTTPReq{URL: srv.URL}, NewClient(0, time.Second, nil))
	require.Error(t, err)
}

func TestLeveledLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	ll := LeveledLogger(logger)
	ll.Warn("giving up", "url", "https://dw.example.edu", "attempts", 3)
	ll.Info("retrying")

	require.Len(t, hook.AllEntries(), 2)
	first := hook.AllEntries()[0]
	assert.Equal(t, logrus.WarnLevel, first.Level)
	assert.Equal(t, "https://dw.example.edu", first.Data["url"])
	assert.Equal(t, 3, first.Data["attempts"])
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
}
