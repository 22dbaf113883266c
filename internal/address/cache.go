package address

import (
	"sync"
	"sync/atomic"

	"github.com/mdm-linkage/internal/proximity"
)

// Cache memoizes parsed addresses by their exact raw line. One cache lives
// for one pipeline run and is shared by all leaf tasks of that run. Two
// leaves racing on the same line store equal values, so the last write wins.
type Cache struct {
	parser  Parser
	entries sync.Map // string -> Address
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCache creates a cache in front of parser (Positional when nil)
func NewCache(parser Parser) *Cache {
	if parser == nil {
		parser = Positional
	}
	return &Cache{parser: parser}
}

// Parse returns the cached Address for line, parsing it on first use.
// Parse failures are not cached.
func (c *Cache) Parse(line string) (Address, error) {
	if v, ok := c.entries.Load(line); ok {
		c.hits.Add(1)
		return v.(Address), nil
	}
	c.misses.Add(1)
	addr, err := c.parser.Parse(line)
	if err != nil {
		return Address{}, err
	}
	c.entries.Store(line, addr)
	return addr, nil
}

// Compare parses (through the cache) and scores two raw address lines
func (c *Cache) Compare(a, b string, m proximity.Metric) (float64, error) {
	first, err := c.Parse(a)
	if err != nil {
		return 0, err
	}
	second, err := c.Parse(b)
	if err != nil {
		return 0, err
	}
	return Compare(first, second, m), nil
}

// Stats reports cache hits and misses so far
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len counts the cached entries
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
