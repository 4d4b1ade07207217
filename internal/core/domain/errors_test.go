package domain

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClassify_OfflineWins(t *testing.T) {
	desc := Classify(errors.New("429 Too Many Requests"), false)
	if desc.Kind != KindOffline {
		t.Errorf("expected offline, got %v", desc.Kind)
	}
	if !desc.Retryable {
		t.Error("offline must be retryable")
	}
	if desc.RetryAfter != 5*time.Second {
		t.Errorf("expected 5s retry delay, got %v", desc.RetryAfter)
	}
}

func TestClassify_Structured(t *testing.T) {
	tests := []struct {
		name       string
		err        *PlacesError
		kind       ErrorKind
		retryable  bool
		retryAfter time.Duration
	}{
		{"http 429", &PlacesError{HTTPStatus: 429}, KindRateLimited, true, 5 * time.Second},
		{"http 400", &PlacesError{HTTPStatus: 400}, KindInvalidRequest, false, 0},
		{"http 404", &PlacesError{HTTPStatus: 404}, KindNotFound, false, 0},
		{"http 500", &PlacesError{HTTPStatus: 500}, KindUpstreamError, true, 10 * time.Second},
		{"http 502", &PlacesError{HTTPStatus: 502}, KindUpstreamError, true, 10 * time.Second},
		{"http 503", &PlacesError{HTTPStatus: 503}, KindUpstreamError, true, 10 * time.Second},
		{"over query limit", &PlacesError{APIStatus: "OVER_QUERY_LIMIT"}, KindRateLimited, true, 60 * time.Second},
		{"request denied", &PlacesError{APIStatus: "REQUEST_DENIED"}, KindUpstreamError, false, 0},
		{"zero results", &PlacesError{APIStatus: "ZERO_RESULTS"}, KindNotFound, false, 0},
		{"invalid request", &PlacesError{APIStatus: "INVALID_REQUEST"}, KindInvalidRequest, false, 0},
		{"other api status", &PlacesError{APIStatus: "UNKNOWN_ERROR"}, KindUpstreamError, true, 30 * time.Second},
		{"transport network", &PlacesError{Kind: KindNetwork}, KindNetwork, true, 2 * time.Second},
		{"transport timeout", &PlacesError{Kind: KindTimeout}, KindTimeout, true, 3 * time.Second},
		{"empty", &PlacesError{}, KindUnknown, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := Classify(tt.err, true)
			if desc.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", desc.Kind, tt.kind)
			}
			if desc.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", desc.Retryable, tt.retryable)
			}
			if desc.RetryAfter != tt.retryAfter {
				t.Errorf("retryAfter = %v, want %v", desc.RetryAfter, tt.retryAfter)
			}
		})
	}
}

func TestClassify_TextFallback(t *testing.T) {
	tests := []struct {
		err       error
		kind      ErrorKind
		retryable bool
	}{
		{errors.New("Failed to fetch"), KindNetwork, true},
		{errors.New("network is unreachable"), KindNetwork, true},
		{errors.New("dial tcp: connection refused"), KindNetwork, true},
		{errors.New("request timeout"), KindTimeout, true},
		{errors.New("operation was aborted"), KindTimeout, true},
		{errors.New("got 429 from upstream"), KindRateLimited, true},
		{errors.New("status 400"), KindInvalidRequest, false},
		{errors.New("status 404"), KindNotFound, false},
		{errors.New("status 503"), KindUpstreamError, true},
		{errors.New("OVER_QUERY_LIMIT"), KindRateLimited, true},
		{errors.New("REQUEST_DENIED"), KindUpstreamError, false},
		{errors.New("ZERO_RESULTS"), KindNotFound, false},
		{errors.New("API Error: something odd"), KindUpstreamError, true},
		{errors.New("completely unexpected"), KindUnknown, false},
	}

	for _, tt := range tests {
		desc := Classify(tt.err, true)
		if desc.Kind != tt.kind {
			t.Errorf("Classify(%q) kind = %v, want %v", tt.err, desc.Kind, tt.kind)
		}
		if desc.Retryable != tt.retryable {
			t.Errorf("Classify(%q) retryable = %v, want %v", tt.err, desc.Retryable, tt.retryable)
		}
	}
}

func TestClassify_DeadlineExceeded(t *testing.T) {
	desc := Classify(context.DeadlineExceeded, true)
	if desc.Kind != KindTimeout {
		t.Errorf("expected timeout, got %v", desc.Kind)
	}
}

func TestClassify_UserMessagesAreFrench(t *testing.T) {
	for kind := KindUnknown; kind <= KindUpstreamError; kind++ {
		desc := Classify(&PlacesError{Kind: kind}, true)
		if desc.UserMessage == "" {
			t.Errorf("kind %v has no user message", kind)
		}
	}
}
