// Package decode turns raw CSV bytes of unknown character encoding into a
// typed table by trying an ordered list of encodings.
package decode

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/raaihank/yt-etl/internal/table"
)

// ErrDecodeExhausted is returned when no candidate, including the lossy
// fallback, produced a table.
var ErrDecodeExhausted = errors.New("decode exhausted")

// Result is the outcome of a successful resolve.
type Result struct {
	Table    *table.Table
	Encoding string
	// Lossy is set when the fallback replaced undecodable bytes.
	Lossy bool
}

// Resolver tries candidates in order; the first one that decodes and parses
// cleanly wins.
type Resolver struct {
	candidates []Candidate
	logger     *zap.Logger
}

// NewResolver builds a resolver for the named encodings, in priority order.
func NewResolver(encodings []string, logger *zap.Logger) (*Resolver, error) {
	candidates, err := Candidates(encodings)
	if err != nil {
		return nil, err
	}
	return &Resolver{candidates: candidates, logger: logger}, nil
}

// Encodings returns the cascade in priority order.
func (r *Resolver) Encodings() []string {
	names := make([]string, len(r.candidates))
	for i, c := range r.candidates {
		names[i] = c.Name
	}
	return names
}

// attempt is one step of the cascade.
type attempt struct {
	candidate Candidate
	err       error
}

// Resolve decodes raw into a table.
func (r *Resolver) Resolve(raw []byte) (*Result, error) {
	attempts := make([]attempt, 0, len(r.candidates))
	for _, c := range r.candidates {
		t, err := tryStrict(c, raw)
		if err == nil {
			r.logger.Info("Loaded CSV", zap.String("encoding", c.Name), zap.Int("rows", t.NumRows()))
			return &Result{Table: t, Encoding: c.Name}, nil
		}
		attempts = append(attempts, attempt{candidate: c, err: err})
		r.logger.Debug("Encoding attempt failed", zap.String("encoding", c.Name), zap.Error(err))
	}

	last := r.candidates[len(r.candidates)-1]
	t, err := parseCSV(last.lossy(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %d encodings failed, lossy %s: %v", ErrDecodeExhausted, len(attempts), last.Name, err)
	}
	r.logger.Warn("Used fallback encoding with replacement",
		zap.String("encoding", last.Name),
		zap.Int("rows", t.NumRows()))
	return &Result{Table: t, Encoding: last.Name, Lossy: true}, nil
}

func tryStrict(c Candidate, raw []byte) (*table.Table, error) {
	text, err := c.strict(raw)
	if err != nil {
		return nil, err
	}
	return parseCSV(text)
}
