package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArcsError_HTTPStatus(t *testing.T) {
	cases := []struct {
		err  *ArcsError
		want int
	}{
		{NewSchemaViolationError("bad field"), http.StatusBadRequest},
		{NewRefinementInvalidError("out of range"), http.StatusBadRequest},
		{NewInvalidRecipeError("unresolved slot"), http.StatusBadRequest},
		{NewOutOfOrderOpError("stale version"), http.StatusConflict},
		{NewDivergenceError("irreconcilable"), http.StatusConflict},
		{NewDriverUnavailableError("connection refused"), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.HTTPStatus())
	}
}

func TestArcsError_WrapUnwraps(t *testing.T) {
	base := assert.AnError
	wrapped := Wrap(base, "driver send failed")
	assert.Equal(t, Internal, wrapped.Code)
	assert.ErrorIs(t, wrapped, base)
}

func TestPropagatedException_Error(t *testing.T) {
	pe := NewPropagatedException("store:handle1", NewDivergenceError("actor alice"))
	assert.Contains(t, pe.Error(), "store:handle1")
	assert.Contains(t, pe.Error(), "DIVERGENCE")
}
