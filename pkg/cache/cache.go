package cache

import (
	"container/list"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrKeyExists = errors.New("key already exists in cache")

// Cache is a weighted LRU cache. Every entry carries a weight, and the least
// recently used entries are evicted once the total weight exceeds the budget.
type Cache interface {
	SetVerbose(verbose bool)
	GetWeight() int
	GetBudget() int
	Len() int
	Insert(key string, value interface{}, weight int) error
	Retrieve(key string) (interface{}, bool)
	Clear()
}

type entry struct {
	key    string
	value  interface{}
	weight int
}

type cache struct {
	log *logrus.Entry

	mu      sync.Mutex
	order   *list.List // front is most recently used
	lookup  map[string]*list.Element
	weight  int
	budget  int
	verbose bool
}

// NewCache initializes and returns a new cache with a given weight budget.
func NewCache(budget int) Cache {
	return &cache{
		log:    logrus.StandardLogger().WithField("type", "cache"),
		order:  list.New(),
		lookup: make(map[string]*list.Element),
		budget: budget,
	}
}

// SetVerbose toggles debug logging of evictions.
func (c *cache) SetVerbose(verbose bool) {
	c.mu.Lock()
	c.verbose = verbose
	c.mu.Unlock()
}

func (c *cache) GetWeight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weight
}

func (c *cache) GetBudget() int {
	return c.budget
}

func (c *cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lookup)
}

// Insert adds a new entry as the most recently used one, evicting the least
// recently used entries until the cache fits its budget. Inserting an
// existing key fails with ErrKeyExists.
func (c *cache) Insert(key string, value interface{}, weight int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, found := c.lookup[key]; found {
		return ErrKeyExists
	}

	c.lookup[key] = c.order.PushFront(&entry{
		key:    key,
		value:  value,
		weight: weight,
	})
	c.weight += weight

	for c.weight > c.budget && c.order.Len() > 0 {
		evicted := c.order.Remove(c.order.Back()).(*entry)
		delete(c.lookup, evicted.key)
		c.weight -= evicted.weight

		if c.verbose {
			c.log.WithFields(logrus.Fields{
				"key":          evicted.key,
				"weight":       evicted.weight,
				"spare_weight": c.budget - c.weight,
			}).Debug("evicted cache entry")
		}
	}

	return nil
}

// Retrieve returns the value for key and marks it as most recently used.
func (c *cache) Retrieve(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, found := c.lookup[key]
	if !found {
		return nil, false
	}

	c.order.MoveToFront(element)
	return element.Value.(*entry).value, true
}

// Clear removes all entries.
func (c *cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.lookup = make(map[string]*list.Element)
	c.weight = 0
}
