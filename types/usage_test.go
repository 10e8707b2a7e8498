package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsage_Add(t *testing.T) {
	t.Parallel()

	u := Usage{InputTokens: 10, OutputTokens: 2}
	got := u.Add(Usage{OutputTokens: 3, CacheReadTokens: 4, ReasoningTokens: 1})

	assert.Equal(t, Usage{InputTokens: 10, OutputTokens: 5, CacheReadTokens: 4, ReasoningTokens: 1}, got)
	// 原值不变
	assert.Equal(t, Usage{InputTokens: 10, OutputTokens: 2}, u)
	assert.Equal(t, 16, got.Total())
}

func TestUsage_NegativeDeltaIgnored(t *testing.T) {
	t.Parallel()

	u := Usage{OutputTokens: 5}
	got := u.Add(Usage{OutputTokens: -3, InputTokens: 1})
	assert.Equal(t, 5, got.OutputTokens)
	assert.Equal(t, 1, got.InputTokens)
}

func TestUsage_IsZero(t *testing.T) {
	t.Parallel()

	assert.True(t, Usage{}.IsZero())
	assert.False(t, Usage{CacheWriteTokens: 1}.IsZero())
}
