package core

import (
	"sync"
	"time"
)

// rateCounter measures delivery rate over the window since the last sample.
type rateCounter struct {
	mu    sync.Mutex
	count int
	since time.Time
}

func newRateCounter() *rateCounter {
	return &rateCounter{since: time.Now()}
}

func (c *rateCounter) Tick() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

// Sample returns deliveries per second since the previous sample and resets
// the window.
func (c *rateCounter) Sample() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.since)
	if elapsed <= 0 {
		return 0
	}
	rate := float64(c.count) / elapsed.Seconds()
	c.count = 0
	c.since = time.Now()
	return rate
}
