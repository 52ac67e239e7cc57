package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrorTypeAPIQueryFailed, 200, "Invalid bbox")
	assert.Equal(t, "api_query_failed error (code 200): Invalid bbox", err.Error())

	wrapped := Wrap(ErrorTypeNetwork, stderrors.New("dial tcp: refused"), "flickr unreachable")
	assert.Contains(t, wrapped.Error(), "network error (code 0): flickr unreachable")
	assert.Contains(t, wrapped.Error(), "dial tcp: refused")
}

func TestTypeOfFollowsWrapChain(t *testing.T) {
	base := New(ErrorTypeRateLimit, 429, "slow down")
	err := fmt.Errorf("fetching page 3: %w", base)

	assert.Equal(t, ErrorTypeRateLimit, TypeOf(err))
	assert.True(t, Is(err, ErrorTypeRateLimit))
	assert.False(t, Is(err, ErrorTypeNetwork))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("plain")))
}

func TestRetryableAndFatalAreDisjoint(t *testing.T) {
	all := []ErrorType{
		ErrorTypeCredentialInvalid, ErrorTypeAPIQueryFailed, ErrorTypeNetwork,
		ErrorTypeRateLimit, ErrorTypeParsing, ErrorTypeServerError,
		ErrorTypeAssetDownload, ErrorTypeEnrichment, ErrorTypeCancelled,
		ErrorTypeValidation, ErrorTypeUnknown,
	}
	for _, et := range all {
		assert.False(t, IsRetryable(et) && IsFatal(et), "type %s is both retryable and fatal", et)
	}

	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeParsing))
	assert.True(t, IsFatal(ErrorTypeCredentialInvalid))
	assert.True(t, IsFatal(ErrorTypeAPIQueryFailed))
}
