package useragent

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"sync/atomic"
)

// Browser lists desktop browser User-Agents used when fetching storefront
// product pages.
var Browser = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
}

// Client returns the identifying User-Agent for API calls, e.g.
// "sprig/1.2.0 (+https://github.com/FranksOps/sprig)".
func Client(name, version string) string {
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("%s/%s (+https://github.com/FranksOps/%s)", name, version, name)
}

// Strategy picks how Get walks the pool.
type Strategy int

const (
	Sequential Strategy = iota
	Random
)

// Pool hands out User-Agents. It is safe for concurrent use.
type Pool struct {
	uas      []string
	strategy Strategy
	counter  atomic.Uint64
}

// NewPool creates a sequential pool. Blank entries are dropped and an empty
// list falls back to Browser.
func NewPool(uas []string) *Pool {
	return NewPoolWithStrategy(uas, Sequential)
}

// NewPoolWithStrategy creates a pool that Get walks with s.
func NewPoolWithStrategy(uas []string, s Strategy) *Pool {
	cleaned := make([]string, 0, len(uas))
	for _, ua := range uas {
		if ua = strings.TrimSpace(ua); ua != "" {
			cleaned = append(cleaned, ua)
		}
	}
	if len(cleaned) == 0 {
		cleaned = slices.Clone(Browser)
	}
	return &Pool{uas: cleaned, strategy: s}
}

// Get returns a User-Agent according to the pool strategy.
func (p *Pool) Get() string {
	if p.strategy == Random {
		return p.GetRandom()
	}
	return p.GetSequential()
}

// GetSequential returns the next User-Agent round-robin.
func (p *Pool) GetSequential() string {
	if len(p.uas) == 0 {
		return ""
	}
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// GetRandom returns a uniformly random User-Agent.
func (p *Pool) GetRandom() string {
	if len(p.uas) == 0 {
		return ""
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.uas))))
	if err != nil {
		return p.GetSequential()
	}
	return p.uas[n.Int64()]
}

// GetAll returns a copy of the pool.
func (p *Pool) GetAll() []string {
	return slices.Clone(p.uas)
}
