package types

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestTokenUsage_Add(t *testing.T) {
	var u TokenUsage
	u.Add(TokenUsageItem{ModelName: "m1", InputTokens: 10, OutputTokens: 2})
	u.Add(TokenUsageItem{ModelName: "m2", InputTokens: 5, OutputTokens: 7})

	assert.Equal(t, 15, u.InputTokens)
	assert.Equal(t, 9, u.OutputTokens)
	assert.Equal(t, 24, u.TotalTokens)
}

func TestTokenUsage_Merge(t *testing.T) {
	a := TokenUsage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}
	b := TokenUsage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30}
	a.Merge(b)

	assert.Equal(t, TokenUsage{InputTokens: 11, OutputTokens: 22, TotalTokens: 33}, a)
}

// Aggregation is summation, so any permutation of the same items must
// produce the same aggregate.
func TestTokenUsage_OrderIndependent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "n")
		items := make([]TokenUsageItem, n)
		for i := range items {
			items[i] = TokenUsageItem{
				InputTokens:  rapid.IntRange(0, 10000).Draw(t, "in"),
				OutputTokens: rapid.IntRange(0, 10000).Draw(t, "out"),
			}
		}

		var forward TokenUsage
		for _, item := range items {
			forward.Add(item)
		}

		shuffled := make([]TokenUsageItem, n)
		copy(shuffled, items)
		seed := rapid.Int64().Draw(t, "seed")
		rand.New(rand.NewSource(seed)).Shuffle(n, func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		var permuted TokenUsage
		for _, item := range shuffled {
			permuted.Add(item)
		}

		if forward != permuted {
			t.Fatalf("aggregate depends on order: %+v vs %+v", forward, permuted)
		}
	})
}
