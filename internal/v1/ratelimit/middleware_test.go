package ratelimit

import (
	"testing"

	"github.com/spinlive/roomserver/internal/v1/config"
	"github.com/stretchr/testify/assert"
)

func TestStandardMiddleware(t *testing.T) {
	cfg := &config.Config{
		RateLimitWsIP: "50-M",
	}

	rl, err := NewRateLimiter(cfg, nil)
	assert.NoError(t, err)

	middleware := rl.StandardMiddleware()
	assert.NotNil(t, middleware)
}
