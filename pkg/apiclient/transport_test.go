package apiclient_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/envention/union/pkg/apiclient"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu        sync.Mutex
	token     string
	next      []string
	refreshes int
	tokens    int
	err       error
}

func (s *stubSource) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens++
	return s.token, nil
}

func (s *stubSource) Refresh(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	if s.err != nil {
		return "", s.err
	}
	if len(s.next) == 0 {
		return "", errors.New("no more tokens")
	}
	s.token, s.next = s.next[0], s.next[1:]
	return s.token, nil
}

type retryCounter struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *retryCounter) ObserveRetry(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

// downstream answers 401 unless the bearer token is in valid, and records
// what it saw.
type downstream struct {
	*httptest.Server
	calls  atomic.Int32
	mu     sync.Mutex
	valid  map[string]bool
	tokens []string
	bodies []string
}

func newDownstream(t *testing.T, valid ...string) *downstream {
	d := &downstream{valid: map[string]bool{}}
	for _, v := range valid {
		d.valid[v] = true
	}
	d.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		d.mu.Lock()
		d.tokens = append(d.tokens, token)
		d.bodies = append(d.bodies, string(body))
		ok := d.valid[token]
		d.mu.Unlock()

		switch {
		case r.URL.Path == "/boom":
			http.Error(w, "kaput", http.StatusInternalServerError)
		case r.URL.Path == "/forbidden":
			http.Error(w, "no", http.StatusForbidden)
		case !ok:
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"ok":true,"echo":`+strings.TrimSpace(orNull(string(body)))+`}`)
		}
	}))
	t.Cleanup(d.Close)
	return d
}

func (d *downstream) seenTokens() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.tokens...)
}

func (d *downstream) seenBodies() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.bodies...)
}

func orNull(s string) string {
	if s == "" {
		return "null"
	}
	return s
}

func newHTTPClient(src apiclient.TokenSource, cache *apiclient.TokenCache, obs apiclient.RetryObserver) *http.Client {
	return &http.Client{Transport: &apiclient.Transport{Source: src, Cache: cache, Observer: obs}}
}

func TestTransportAttachesBearer(t *testing.T) {
	t.Parallel()

	api := newDownstream(t, "good")
	src := &stubSource{token: "good"}
	cache := apiclient.NewTokenCache("")
	client := newHTTPClient(src, cache, nil)

	for range 3 {
		resp, err := client.Get(api.URL + "/members")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	require.Equal(t, []string{"good", "good", "good"}, api.seenTokens())
	require.Equal(t, 1, src.tokens, "cached token reused")
	require.Zero(t, src.refreshes)
	require.Equal(t, "good", cache.Get())
}

func TestTransportRefreshesOnceOn401(t *testing.T) {
	t.Parallel()

	api := newDownstream(t, "fresh")
	src := &stubSource{token: "stale", next: []string{"fresh"}}
	obs := &retryCounter{}
	cache := apiclient.NewTokenCache("stale")
	client := newHTTPClient(src, cache, obs)

	resp, err := client.Post(api.URL+"/members", "application/json", strings.NewReader(`{"name":"ada"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, src.refreshes)
	require.EqualValues(t, 2, api.calls.Load())
	require.Equal(t, []string{"stale", "fresh"}, api.seenTokens())
	require.Equal(t, []string{`{"name":"ada"}`, `{"name":"ada"}`}, api.seenBodies(), "body replayed byte for byte")
	require.Equal(t, "fresh", cache.Get())
	require.Equal(t, []string{apiclient.OutcomeRetried}, obs.outcomes)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true,"echo":{"name":"ada"}}`, string(body))
}

func TestTransportSecond401IsReturned(t *testing.T) {
	t.Parallel()

	api := newDownstream(t) // nothing is valid
	src := &stubSource{token: "a", next: []string{"b", "c"}}
	obs := &retryCounter{}
	client := newHTTPClient(src, nil, obs)

	resp, err := client.Get(api.URL + "/members")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, 1, src.refreshes, "no second refresh")
	require.EqualValues(t, 2, api.calls.Load(), "exactly one replay")
	require.Equal(t, []string{"a", "b"}, api.seenTokens())
	require.Equal(t, []string{apiclient.OutcomeUnauthorized}, obs.outcomes)
	require.Contains(t, resp.Header.Get("WWW-Authenticate"), "invalid_token")
}

func TestTransportRefreshFailureReturnsOriginal401(t *testing.T) {
	t.Parallel()

	api := newDownstream(t)
	src := &stubSource{token: "a", err: errors.New("idp says no")}
	obs := &retryCounter{}
	client := newHTTPClient(src, nil, obs)

	resp, err := client.Get(api.URL + "/members")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 1, api.calls.Load(), "no replay without a new token")
	require.Equal(t, []string{apiclient.OutcomeRefreshFailed}, obs.outcomes)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "invalid_token")
}

func TestTransportRefreshFailureKeepsLarge401Body(t *testing.T) {
	t.Parallel()

	large := strings.Repeat("x", 100<<10)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, large)
	}))
	t.Cleanup(api.Close)

	src := &stubSource{token: "a", err: errors.New("idp says no")}
	resp, err := newHTTPClient(src, nil, nil).Get(api.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Len(t, body, len(large))
}

func TestTransportRefreshFailureClearsCache(t *testing.T) {
	t.Parallel()

	api := newDownstream(t)
	src := &stubSource{token: "a", err: errors.New("idp says no")}
	cache := apiclient.NewTokenCache("stale")
	client := newHTTPClient(src, cache, nil)

	resp, err := client.Get(api.URL + "/members")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, cache.Get())
	require.Zero(t, src.tokens)

	// The rejected token is not reused; the source is asked again.
	resp, err = client.Get(api.URL + "/members")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 1, src.tokens)
	require.Equal(t, []string{"stale", "a"}, api.seenTokens())
}

func TestTransportDoesNotRetryOtherErrors(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"/boom", "/forbidden"} {
		t.Run(path, func(t *testing.T) {
			api := newDownstream(t, "good")
			src := &stubSource{token: "good", next: []string{"other"}}
			client := newHTTPClient(src, nil, nil)

			resp, err := client.Get(api.URL + path)
			require.NoError(t, err)
			resp.Body.Close()

			require.NotEqual(t, http.StatusOK, resp.StatusCode)
			require.EqualValues(t, 1, api.calls.Load())
			require.Zero(t, src.refreshes)
		})
	}
}

func TestTransportIndependentCalls(t *testing.T) {
	t.Parallel()

	// Each logical call gets its own one-shot guard.
	api := newDownstream(t)
	src := &stubSource{token: "a", next: []string{"b", "c", "d"}}
	client := newHTTPClient(src, apiclient.NewTokenCache(""), nil)

	for range 2 {
		resp, err := client.Get(api.URL + "/members")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	require.Equal(t, 2, src.refreshes)
	require.EqualValues(t, 4, api.calls.Load())
}

func TestTransportWithoutSource(t *testing.T) {
	t.Parallel()

	client := &http.Client{Transport: &apiclient.Transport{}}
	_, err := client.Get("http://127.0.0.1:1/")
	require.Error(t, err)
}
