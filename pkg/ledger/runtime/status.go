package runtime

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/code-payments/donation-ledger/pkg/solana"
)

const (
	statusFilterCapacity          = 1_000_000
	statusFilterFalsePositiveRate = 0.001
)

// TransactionStatus is the recorded outcome of a processed transaction
type TransactionStatus struct {
	Slot      uint64
	Blockhash solana.Blockhash
	Err       *solana.TransactionError
}

// statusCache records the signatures of every transaction processed against
// a blockhash that is still recent. A bloom filter answers most duplicate
// checks for new signatures without touching the maps.
type statusCache struct {
	mu          sync.RWMutex
	filter      *bloom.BloomFilter
	bySignature map[solana.Signature]*TransactionStatus
	byBlockhash map[solana.Blockhash][]solana.Signature
}

func newStatusCache() *statusCache {
	return &statusCache{
		filter:      bloom.NewWithEstimates(statusFilterCapacity, statusFilterFalsePositiveRate),
		bySignature: make(map[solana.Signature]*TransactionStatus),
		byBlockhash: make(map[solana.Blockhash][]solana.Signature),
	}
}

func (c *statusCache) contains(sig solana.Signature) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.filter.Test(sig[:]) {
		return false
	}

	_, ok := c.bySignature[sig]
	return ok
}

func (c *statusCache) get(sig solana.Signature) (*TransactionStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status, ok := c.bySignature[sig]
	if !ok {
		return nil, false
	}

	cloned := *status
	return &cloned, true
}

func (c *statusCache) insert(sig solana.Signature, status *TransactionStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.filter.Add(sig[:])
	c.bySignature[sig] = status
	c.byBlockhash[status.Blockhash] = append(c.byBlockhash[status.Blockhash], sig)
}

// prune drops every status recorded against an expired blockhash. Those
// transactions can no longer be replayed, since the blockhash check rejects
// them first.
func (c *statusCache) prune(expired solana.Blockhash) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sigs, ok := c.byBlockhash[expired]
	if !ok {
		return
	}

	for _, sig := range sigs {
		delete(c.bySignature, sig)
	}
	delete(c.byBlockhash, expired)

	c.filter.ClearAll()
	for sig := range c.bySignature {
		c.filter.Add(sig[:])
	}
}

func (c *statusCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.bySignature)
}

type blockhashEntry struct {
	hash solana.Blockhash
	slot uint64
}

// blockhashQueue holds the most recent blockhashes, oldest first
type blockhashQueue struct {
	entries []blockhashEntry
	index   map[solana.Blockhash]uint64
}

func newBlockhashQueue() *blockhashQueue {
	return &blockhashQueue{
		index: make(map[solana.Blockhash]uint64),
	}
}

func (q *blockhashQueue) push(hash solana.Blockhash, slot uint64) {
	q.entries = append(q.entries, blockhashEntry{hash: hash, slot: slot})
	q.index[hash] = slot
}

// evict removes the oldest entries until at most max remain, returning the
// removed hashes.
func (q *blockhashQueue) evict(max int) []solana.Blockhash {
	var evicted []solana.Blockhash
	for len(q.entries) > max {
		evicted = append(evicted, q.entries[0].hash)
		delete(q.index, q.entries[0].hash)
		q.entries = q.entries[1:]
	}
	return evicted
}

func (q *blockhashQueue) contains(hash solana.Blockhash) bool {
	_, ok := q.index[hash]
	return ok
}

func (q *blockhashQueue) latest() blockhashEntry {
	return q.entries[len(q.entries)-1]
}
