package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	cause := errors.New("disk full")
	inner := Wrap(cause, CodeLogWriteFailed, "append issuance record")
	outer := Wrap(fmt.Errorf("issue: %w", inner), CodeInternal, "issuance failed")

	assert.True(t, HasCode(outer, CodeInternal))
	assert.True(t, HasCode(outer, CodeLogWriteFailed))
	assert.False(t, HasCode(outer, CodeRenderFailed))
	assert.False(t, HasCode(cause, CodeInternal))
	assert.ErrorIs(t, outer, cause)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "bad input", New(CodeBadRequest, "bad input").Error())
	assert.Equal(t, "store: boom", Wrap(errors.New("boom"), CodeStoreCorrupt, "store").Error())
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:     http.StatusBadRequest,
		CodeValidation:     http.StatusBadRequest,
		CodeUnauthorized:   http.StatusUnauthorized,
		CodeNotFound:       http.StatusNotFound,
		CodeTimeout:        http.StatusGatewayTimeout,
		CodeStoreCorrupt:   http.StatusInternalServerError,
		CodeLogWriteFailed: http.StatusInternalServerError,
	}
	for code, want := range cases {
		t.Run(string(code), func(t *testing.T) {
			assert.Equal(t, want, ToHTTPStatus(code))
		})
	}
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeRenderFailed, CodeOf(fmt.Errorf("x: %w", New(CodeRenderFailed, "qr"))))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}
