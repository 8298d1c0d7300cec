package sync

import (
	"sort"
	base "sync"
)

const virtualNodesPerStripe = 200

// StripedLock is a partitioned locking mechanism that consistently maps a key
// space to a set of locks. This provides concurrent data access while also
// limiting the total memory footprint.
type StripedLock struct {
	locks []base.RWMutex
	ring  *stripeRing
}

// NewStripedLock returns a new StripedLock with a static number of stripes.
func NewStripedLock(stripes uint) *StripedLock {
	return &StripedLock{
		locks: make([]base.RWMutex, stripes),
		ring:  newStripeRing("lock", stripes, virtualNodesPerStripe),
	}
}

// Get gets the lock for a key
func (l *StripedLock) Get(key []byte) *base.RWMutex {
	return &l.locks[l.stripe(key)]
}

// LockMany acquires every stripe covering writeKeys exclusively and every
// stripe covering readKeys shared, then returns the function that releases
// them. A stripe shared by a write key and a read key is write locked.
//
// Stripes are always acquired in ascending index order, so concurrent
// callers with overlapping key sets cannot deadlock.
func (l *StripedLock) LockMany(writeKeys, readKeys [][]byte) (unlock func()) {
	exclusive := make(map[int]bool)
	for _, key := range readKeys {
		exclusive[l.stripe(key)] = false
	}
	for _, key := range writeKeys {
		exclusive[l.stripe(key)] = true
	}

	stripes := make([]int, 0, len(exclusive))
	for stripe := range exclusive {
		stripes = append(stripes, stripe)
	}
	sort.Ints(stripes)

	for _, stripe := range stripes {
		if exclusive[stripe] {
			l.locks[stripe].Lock()
		} else {
			l.locks[stripe].RLock()
		}
	}

	return func() {
		for i := len(stripes) - 1; i >= 0; i-- {
			stripe := stripes[i]
			if exclusive[stripe] {
				l.locks[stripe].Unlock()
			} else {
				l.locks[stripe].RUnlock()
			}
		}
	}
}

func (l *StripedLock) stripe(key []byte) int {
	return l.ring.stripe(key)
}
