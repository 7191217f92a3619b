package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:   http.StatusBadRequest,
		CodeBusinessRule: http.StatusBadRequest,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeForbidden:    http.StatusForbidden,
		CodeNotFound:     http.StatusNotFound,
		CodeInternal:     http.StatusInternalServerError,
		Code("weird"):    http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, New(code, "x").HTTPStatus(), "code %s", code)
	}
}

func TestFromFindsWrappedErrors(t *testing.T) {
	base := BusinessRule(RuleInvalidTransition, "cannot move coach", nil)
	wrapped := fmt.Errorf("approve: %w", base)

	e, ok := From(wrapped)
	assert.True(t, ok)
	assert.Same(t, base, e)
	assert.True(t, HasRule(wrapped, RuleInvalidTransition))
	assert.False(t, HasRule(wrapped, RuleChecklistIncomplete))
	assert.True(t, HasCode(wrapped, CodeBusinessRule))

	_, ok = From(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, HasRule(Validation("bad"), RuleInvalidState))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, CodeInternal, "datastore failure")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal: datastore failure: disk full", err.Error())
	assert.Equal(t, "not_found: coach not found", NotFound("coach").Error())
}
