package oracle

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// StaticSource serves operator supplied prices, typically loaded from
// configuration or set during incident response.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[string]Observation
}

// NewStaticSource constructs an empty static source.
func NewStaticSource() *StaticSource {
	return &StaticSource{prices: make(map[string]Observation)}
}

// Set stores an 18 decimal price observed at height.
func (s *StaticSource) Set(symbol string, price *big.Int, height uint64) {
	if s == nil || price == nil {
		return
	}
	sym := normaliseSymbol(symbol)
	if sym == "" {
		return
	}
	s.mu.Lock()
	s.prices[sym] = Observation{Price: new(big.Int).Set(price), Height: height, Source: "static"}
	s.mu.Unlock()
}

// SetDecimal parses a human readable USD price such as "1.0325" and stores it
// with 18 decimals. Digits beyond 18 decimals are truncated.
func (s *StaticSource) SetDecimal(symbol, price string, height uint64) error {
	if s == nil {
		return fmt.Errorf("static oracle not configured")
	}
	trimmed := strings.TrimSpace(price)
	if trimmed == "" {
		return fmt.Errorf("static oracle: price required")
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return fmt.Errorf("static oracle: invalid price %q: %w", price, err)
	}
	if !value.IsPositive() {
		return fmt.Errorf("static oracle: price must be positive")
	}
	scaled := value.Shift(PriceDecimals).Truncate(0).BigInt()
	if scaled.Sign() <= 0 {
		return fmt.Errorf("static oracle: price %q below 18 decimal precision", price)
	}
	s.Set(symbol, scaled, height)
	return nil
}

// Observe returns the stored price for symbol.
func (s *StaticSource) Observe(symbol string) (Observation, error) {
	if s == nil {
		return Observation{}, fmt.Errorf("static oracle not configured")
	}
	sym := normaliseSymbol(symbol)
	s.mu.RLock()
	obs, ok := s.prices[sym]
	s.mu.RUnlock()
	if !ok {
		return Observation{}, fmt.Errorf("%w: %s", ErrUnknownAsset, sym)
	}
	return obs.Clone(), nil
}

// FormatPrice renders an 18 decimal price for display.
func FormatPrice(price *big.Int) string {
	if price == nil {
		return "0"
	}
	return decimal.NewFromBigInt(price, -PriceDecimals).String()
}
