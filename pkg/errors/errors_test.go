package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInternal, http.StatusTeapot, "brew"), http.StatusTeapot},
		{"not loaded", ErrIndexNotLoaded, http.StatusServiceUnavailable},
		{"wrapped invalid index", fmt.Errorf("opening: %w", ErrInvalidIndex), http.StatusBadRequest},
		{"unknown pipeline", ErrUnknownPipelineFunction, http.StatusBadRequest},
		{"book missing", ErrBookNotFound, http.StatusNotFound},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"anything else", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "limit %d out of range", 0)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatal("expected AppError to unwrap to its sentinel")
	}
	if got, want := err.Error(), "invalid input: limit 0 out of range"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
