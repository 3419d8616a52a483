package core

import (
	"sync"
	"time"
)

// Clock supplies the block height bond operations execute at.
type Clock interface {
	Height() uint64
}

// BlockClock derives heights from wall-clock time: one block every blockTime
// since genesis. Heights before genesis are zero.
type BlockClock struct {
	genesis   time.Time
	blockTime time.Duration
	now       func() time.Time
}

// NewBlockClock constructs a clock anchored at genesis. A zero genesis anchors
// the clock at construction time.
func NewBlockClock(genesis time.Time, blockTime time.Duration) *BlockClock {
	if genesis.IsZero() {
		genesis = time.Now()
	}
	if blockTime <= 0 {
		blockTime = time.Second
	}
	return &BlockClock{genesis: genesis, blockTime: blockTime, now: time.Now}
}

func (c *BlockClock) Height() uint64 {
	elapsed := c.now().Sub(c.genesis)
	if elapsed <= 0 {
		return 0
	}
	return uint64(elapsed / c.blockTime)
}

// ManualClock is advanced explicitly. Tests and offline tooling use it.
type ManualClock struct {
	mu     sync.Mutex
	height uint64
}

func NewManualClock(height uint64) *ManualClock {
	return &ManualClock{height: height}
}

func (c *ManualClock) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

func (c *ManualClock) Set(height uint64) {
	c.mu.Lock()
	c.height = height
	c.mu.Unlock()
}

// Advance moves the clock forward by blocks and returns the new height.
func (c *ManualClock) Advance(blocks uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height += blocks
	return c.height
}
