package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// TokenSource supplies access tokens to a Transport.
type TokenSource interface {
	// Token returns the current access token.
	Token(ctx context.Context) (string, error)

	// Refresh obtains a new access token after the current one was rejected.
	Refresh(ctx context.Context) (string, error)
}

// RetryObserver is told how each 401 was handled.
type RetryObserver interface {
	ObserveRetry(outcome string)
}

// Outcomes reported to RetryObserver.
const (
	OutcomeRetried       = "retried"        // replay succeeded (non-401)
	OutcomeUnauthorized  = "unauthorized"   // replay got a 401 too
	OutcomeRefreshFailed = "refresh_failed" // no replay, original 401 returned
)

// maxDrainedBody caps how much of a discarded 401 body is read so its
// connection can be reused.
const maxDrainedBody = 64 << 10

// state of one logical call.
type state int

const (
	stateSent state = iota
	stateUnauthorized
	stateRefreshing
	stateRetried
	stateDone
	stateFailed
)

// Transport adds "Authorization: Bearer <token>" and retries once on 401.
// When the refresh fails the original 401 is returned untouched, body
// included.
type Transport struct {
	Base     http.RoundTripper // defaults to http.DefaultTransport
	Source   TokenSource
	Cache    *TokenCache // optional; without one every call asks Source
	Observer RetryObserver
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) observe(outcome string) {
	if t.Observer != nil {
		t.Observer.ObserveRetry(outcome)
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Source == nil {
		return nil, errors.New("apiclient: no token source")
	}
	ctx := req.Context()

	body, err := readBody(req)
	if err != nil {
		return nil, err
	}

	cache := t.Cache
	if cache == nil {
		cache = &TokenCache{}
	}

	token, err := currentToken(ctx, cache, t.Source)
	if err != nil {
		return nil, fmt.Errorf("apiclient: access token: %w", err)
	}

	var (
		st    = stateSent
		resp  *http.Response
		first *http.Response // the 401 that started a refresh, still unread
	)

	for {
		switch st {
		case stateSent:
			resp, err = t.send(req, body, token)
			switch {
			case err != nil:
				st = stateFailed
			case resp.StatusCode == http.StatusUnauthorized:
				st = stateUnauthorized
			default:
				st = stateDone
			}

		case stateUnauthorized:
			first = resp
			st = stateRefreshing

		case stateRefreshing:
			fresh, rerr := t.Source.Refresh(ctx)
			if rerr != nil || fresh == "" {
				// The cached token was just rejected.
				cache.Clear()
				t.observe(OutcomeRefreshFailed)
				resp = first
				st = stateDone
				continue
			}
			discard(first)
			cache.Set(fresh)
			token = fresh
			st = stateRetried

		case stateRetried:
			resp, err = t.send(req, body, token)
			if err != nil {
				st = stateFailed
				continue
			}
			if resp.StatusCode == http.StatusUnauthorized {
				t.observe(OutcomeUnauthorized)
			} else {
				t.observe(OutcomeRetried)
			}
			st = stateDone

		case stateDone:
			return resp, nil

		case stateFailed:
			return nil, err
		}
	}
}

func currentToken(ctx context.Context, cache *TokenCache, src TokenSource) (string, error) {
	if token := cache.Get(); token != "" {
		return token, nil
	}

	token, err := src.Token(ctx)
	if err != nil {
		return "", err
	}
	cache.Set(token)
	return token, nil
}

func (t *Transport) send(orig *http.Request, body []byte, token string) (*http.Response, error) {
	req := orig.Clone(orig.Context())
	if body != nil {
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		req.ContentLength = int64(len(body))
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return t.base().RoundTrip(req)
}

// readBody drains and closes the request body so it can be replayed.
func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()

	b, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: read request body: %w", err)
	}
	return b, nil
}

// discard drains and closes a response that will not reach the caller.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainedBody))
	resp.Body.Close()
}
