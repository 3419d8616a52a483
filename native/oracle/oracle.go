package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// PriceDecimals is the fixed precision of every USD price.
const PriceDecimals = 18

var (
	// ErrNoFreshQuote indicates that no source produced a quote within the
	// freshness window.
	ErrNoFreshQuote = errors.New("oracle: no fresh quote available")
	ErrUnknownAsset = errors.New("oracle: unknown asset")
)

// Observation is a USD price with 18 decimals observed at a block height.
type Observation struct {
	Price  *big.Int
	Height uint64
	Source string
}

// Clone returns a deep copy of the observation.
func (o Observation) Clone() Observation {
	clone := Observation{Height: o.Height, Source: o.Source}
	if o.Price != nil {
		clone.Price = new(big.Int).Set(o.Price)
	}
	return clone
}

// Source resolves the USD price of a symbol.
type Source interface {
	Observe(symbol string) (Observation, error)
}

func normaliseSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Aggregator consults registered sources in priority order until a fresh
// observation is obtained.
type Aggregator struct {
	mu           sync.RWMutex
	priority     []string
	sources      map[string]Source
	maxAgeBlocks uint64
	height       uint64
}

// NewAggregator constructs an aggregator. A zero maxAgeBlocks disables the
// freshness check.
func NewAggregator(priority []string, maxAgeBlocks uint64) *Aggregator {
	prio := make([]string, 0, len(priority))
	for _, name := range priority {
		if trimmed := strings.ToLower(strings.TrimSpace(name)); trimmed != "" {
			prio = append(prio, trimmed)
		}
	}
	return &Aggregator{
		priority:     prio,
		sources:      make(map[string]Source),
		maxAgeBlocks: maxAgeBlocks,
	}
}

// SetMaxAge updates the freshness window in blocks.
func (a *Aggregator) SetMaxAge(blocks uint64) {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.maxAgeBlocks = blocks
	a.mu.Unlock()
}

// SetBlockHeight records the height freshness is measured against.
func (a *Aggregator) SetBlockHeight(height uint64) {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.height = height
	a.mu.Unlock()
}

// Register adds or replaces a source. New names are appended to the priority
// list.
func (a *Aggregator) Register(name string, source Source) {
	if a == nil {
		return
	}
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sources[trimmed] = source
	for _, entry := range a.priority {
		if entry == trimmed {
			return
		}
	}
	a.priority = append(a.priority, trimmed)
}

// Observe returns the first fresh, positive observation for symbol.
func (a *Aggregator) Observe(symbol string) (Observation, error) {
	if a == nil {
		return Observation{}, fmt.Errorf("oracle aggregator not configured")
	}
	sym := normaliseSymbol(symbol)
	if sym == "" {
		return Observation{}, fmt.Errorf("oracle: symbol required")
	}
	a.mu.RLock()
	priority := append([]string{}, a.priority...)
	maxAge := a.maxAgeBlocks
	height := a.height
	a.mu.RUnlock()

	var lastErr error
	for _, name := range priority {
		a.mu.RLock()
		source := a.sources[name]
		a.mu.RUnlock()
		if source == nil {
			continue
		}
		obs, err := source.Observe(sym)
		if err != nil {
			lastErr = err
			continue
		}
		if obs.Price == nil || obs.Price.Sign() <= 0 {
			lastErr = fmt.Errorf("oracle %s returned invalid price", name)
			continue
		}
		if maxAge > 0 && height > obs.Height && height-obs.Height > maxAge {
			lastErr = ErrNoFreshQuote
			continue
		}
		result := obs.Clone()
		if strings.TrimSpace(result.Source) == "" {
			result.Source = name
		}
		return result, nil
	}
	if lastErr == nil {
		lastErr = ErrNoFreshQuote
	}
	return Observation{}, lastErr
}

// USDPrice returns the 18 decimal USD price of symbol.
func (a *Aggregator) USDPrice(symbol string) (*big.Int, error) {
	obs, err := a.Observe(symbol)
	if err != nil {
		return nil, err
	}
	return obs.Price, nil
}
