package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoVal_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	val, err := DoVal(context.Background(), fastConfig(), func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", NewTransientError(eris.New("upstream 503"), 503)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, attempts)
}

func TestDoVal_DoesNotRetryPermanentErrors(t *testing.T) {
	attempts := 0
	_, err := DoVal(context.Background(), fastConfig(), func(context.Context) (int, error) {
		attempts++
		return 0, eris.New("permanent parse failure")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	_, err := DoVal(context.Background(), fastConfig(), func(context.Context) (int, error) {
		attempts++
		return 0, NewTransientError(eris.New("still down"), 502)
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoVal_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := DoVal(ctx, fastConfig(), func(context.Context) (int, error) {
		attempts++
		cancel()
		return 0, NewTransientError(eris.New("down"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("bad payload")))
	assert.True(t, IsTransient(NewTransientError(eris.New("503"), 503)))
	assert.True(t, IsTransient(eris.Wrap(NewTransientError(eris.New("503"), 503), "fetch page")))
	assert.True(t, IsTransient(eris.New("read tcp: connection reset by peer")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}
