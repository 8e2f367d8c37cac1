package util

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPipelineErrorsStayDistinct(t *testing.T) {
	cause := errors.New("boom")

	canonical := ToDomainError(NewCanonicalWriteError(cause))
	fanout := ToDomainError(NewFanoutError(cause, "ann-7"))
	timeout := ToDomainError(NewTimeout("fan-out", context.DeadlineExceeded))

	assert.Equal(t, CodeCanonicalWrite, canonical.Code)
	assert.Equal(t, CodeFanout, fanout.Code)
	assert.Equal(t, CodeTimeout, timeout.Code)
	assert.Equal(t, "ann-7", fanout.Details["announcement_id"])
	assert.NotEqual(t, canonical.Code, fanout.Code)
}

func TestNoRecipientsIsUnprocessable(t *testing.T) {
	err := ToDomainError(NewNoRecipients(map[string]any{"regions": []string{"KHI"}}))
	assert.Equal(t, CodeNoRecipients, err.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
}

func TestPermissionDeniedCarriesContext(t *testing.T) {
	err := ToDomainError(NewPermissionDenied("announcements", "create"))
	assert.Equal(t, CodePermissionDenied, err.Code)
	assert.Equal(t, "announcements", err.Details["resource"])
	assert.Equal(t, "create", err.Details["action"])
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(NewTimeout("write", context.DeadlineExceeded)))
	assert.False(t, IsTimeout(errors.New("boom")))
}

func TestToDomainErrorPassesThrough(t *testing.T) {
	original := NewConflict("already exists", nil)
	mapped := ToDomainError(original)
	require.NotNil(t, mapped)
	assert.Equal(t, CodeConflict, mapped.Code)

	generic := ToDomainError(errors.New("mystery"))
	assert.Equal(t, CodeInternal, generic.Code)
}
