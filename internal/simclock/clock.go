// Package simclock projects real ledger timestamps onto simulated time.
package simclock

import (
	"math"
	"math/big"
	"sync"
	"time"
)

// Source supplies wall-clock time.
type Source interface {
	Now() time.Time
}

type RealSource struct{}

func (RealSource) Now() time.Time { return time.Now().UTC() }

// Clock maps real time to simulated time as
// simStart + (real - unixStart) * timeScale. Until Start is called the
// mapping is the identity.
type Clock struct {
	mu        sync.RWMutex
	source    Source
	timeScale uint64
	simStart  time.Time
	unixStart int64
	started   bool
	running   bool
}

func New(source Source, timeScale uint64, simStart time.Time) *Clock {
	if source == nil {
		source = RealSource{}
	}
	if timeScale == 0 {
		timeScale = 1
	}
	return &Clock{
		source:    source,
		timeScale: timeScale,
		simStart:  simStart.UTC(),
	}
}

// Start anchors simulated time at unixStartSeconds and marks the
// simulation as running.
func (c *Clock) Start(unixStartSeconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unixStart = unixStartSeconds
	c.started = true
	c.running = true
}

func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
}

func (c *Clock) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *Clock) TimeScale() uint64 {
	return c.timeScale
}

func (c *Clock) SimStart() time.Time {
	return c.simStart
}

// Now is the current wall-clock time of the underlying source.
func (c *Clock) Now() time.Time {
	return c.source.Now()
}

// TimestampToSim maps a ledger timestamp in unix nanoseconds to simulated
// unix nanoseconds, clamped to the uint64 range.
func (c *Clock) TimestampToSim(ts uint64) uint64 {
	c.mu.RLock()
	started, unixStart := c.started, c.unixStart
	c.mu.RUnlock()

	if !started {
		return ts
	}

	elapsed := new(big.Int).Sub(
		new(big.Int).SetUint64(ts),
		new(big.Int).Mul(big.NewInt(unixStart), big.NewInt(int64(time.Second))),
	)
	sim := elapsed.Mul(elapsed, new(big.Int).SetUint64(c.timeScale))
	sim.Add(sim, big.NewInt(c.simStart.UnixNano()))

	switch {
	case sim.Sign() < 0:
		return 0
	case !sim.IsUint64():
		return math.MaxUint64
	}
	return sim.Uint64()
}

// SimNow is the simulated instant corresponding to the source's now.
func (c *Clock) SimNow() time.Time {
	ns := c.TimestampToSim(uint64(c.source.Now().UnixNano()))
	return time.Unix(0, int64(ns)).UTC()
}

// RealDuration converts a simulated span into the wall-clock time it takes.
func (c *Clock) RealDuration(sim time.Duration) time.Duration {
	return sim / time.Duration(c.timeScale)
}
