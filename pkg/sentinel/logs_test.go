package sentinel

import (
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"
)

func TestClassifyQueryErrorCarriesHTTPStatus(t *testing.T) {
	qerr := classifyQueryError(&azcore.ResponseError{StatusCode: 401})

	assert.Equal(t, "http_401", qerr.Code)
	assert.Equal(t, 401, qerr.Status)
	assert.False(t, qerr.RetryPossible)
}

func TestClassifyQueryErrorPrefersServiceCode(t *testing.T) {
	qerr := classifyQueryError(&azcore.ResponseError{
		ErrorCode:  "InsufficientAccessError",
		StatusCode: 403,
	})

	assert.Equal(t, "InsufficientAccessError", qerr.Code)
	assert.Equal(t, 403, qerr.Status)
	assert.False(t, qerr.RetryPossible)
}

func TestClassifyQueryErrorRetryableStatuses(t *testing.T) {
	for _, status := range []int{429, 500, 502, 503, 504} {
		qerr := classifyQueryError(&azcore.ResponseError{StatusCode: status})
		assert.True(t, qerr.RetryPossible, "status %d should be retryable", status)
		assert.Equal(t, status, qerr.Status)
	}

	qerr := classifyQueryError(&azcore.ResponseError{StatusCode: 400})
	assert.False(t, qerr.RetryPossible)
}

func TestClassifyQueryErrorUnknown(t *testing.T) {
	qerr := classifyQueryError(errors.New("dial tcp: connection refused"))

	assert.Equal(t, "unknown", qerr.Code)
	assert.Zero(t, qerr.Status)
	assert.False(t, qerr.RetryPossible)
}
