package skill

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator counts tokens for model-end events whose provider reported
// no usage metadata.
type Estimator interface {
	Estimate(text string) int
}

// TokenEstimator estimates with the cl100k_base encoding, lazily
// initialized on first use (loading the encoding may download data).
// When the encoding is unavailable it falls back to a bytes/4
// heuristic so accounting still happens offline.
type TokenEstimator struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTokenEstimator creates an estimator.
func NewTokenEstimator() *TokenEstimator {
	return &TokenEstimator{}
}

func (e *TokenEstimator) init() {
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return
		}
		e.enc = enc
	})
}

// Estimate returns the token count of text.
func (e *TokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	e.init()
	if e.enc != nil {
		return len(e.enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}
