package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "classified error",
			err:  New(KindValidation, "principalId is required"),
			want: KindValidation,
		},
		{
			name: "wrapped classified error",
			err:  fmt.Errorf("handler: %w", New(KindConflict, "already completed")),
			want: KindConflict,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessageHidesInternals(t *testing.T) {
	err := Wrap(KindUpstream, "swap router error", errors.New("dial tcp 10.0.0.1:443: i/o timeout"))
	if Message(err) != "swap router error" {
		t.Errorf("Message() = %q, want %q", Message(err), "swap router error")
	}

	plain := errors.New("pq: password authentication failed")
	if Message(plain) != "unexpected error" {
		t.Errorf("Message() = %q, want generic message", Message(plain))
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindAuth, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindConflict, http.StatusConflict},
		{KindNotFound, http.StatusNotFound},
		{KindMethod, http.StatusMethodNotAllowed},
		{KindUpstream, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.kind); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindUpstream, "indexer error", cause)
	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable via errors.Is")
	}
}
