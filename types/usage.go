package types

// Usage 流式 Token 用量。每个片段携带增量，聚合状态持有累计值。
type Usage struct {
	InputTokens      int `json:"input_tokens,omitempty" yaml:"input_tokens"`
	OutputTokens     int `json:"output_tokens,omitempty" yaml:"output_tokens"`
	CacheWriteTokens int `json:"cache_write_tokens,omitempty" yaml:"cache_write_tokens"`
	CacheReadTokens  int `json:"cache_read_tokens,omitempty" yaml:"cache_read_tokens"`
	ReasoningTokens  int `json:"reasoning_tokens,omitempty" yaml:"reasoning_tokens"`
}

// Add returns the sum of u and delta. Negative delta components are ignored
// so that cumulative usage never decreases.
func (u Usage) Add(delta Usage) Usage {
	return Usage{
		InputTokens:      u.InputTokens + nonNegative(delta.InputTokens),
		OutputTokens:     u.OutputTokens + nonNegative(delta.OutputTokens),
		CacheWriteTokens: u.CacheWriteTokens + nonNegative(delta.CacheWriteTokens),
		CacheReadTokens:  u.CacheReadTokens + nonNegative(delta.CacheReadTokens),
		ReasoningTokens:  u.ReasoningTokens + nonNegative(delta.ReasoningTokens),
	}
}

// Total returns input + output + reasoning tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens + u.ReasoningTokens
}

// IsZero reports whether no usage has been recorded.
func (u Usage) IsZero() bool {
	return u == Usage{}
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
