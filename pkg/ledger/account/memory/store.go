package memory

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"sort"
	"sync"

	"github.com/code-payments/donation-ledger/pkg/ledger/account"
)

type store struct {
	mu      sync.RWMutex
	records map[string]*account.Record
}

type ByAddress []*account.Record

func (a ByAddress) Len() int           { return len(a) }
func (a ByAddress) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ByAddress) Less(i, j int) bool { return bytes.Compare(a[i].Address, a[j].Address) < 0 }

func New() account.Store {
	return &store{
		records: make(map[string]*account.Record),
	}
}

func (s *store) reset() {
	s.mu.Lock()
	s.records = make(map[string]*account.Record)
	s.mu.Unlock()
}

func (s *store) Get(_ context.Context, address ed25519.PublicKey) (*account.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.records[string(address)]
	if !ok {
		return nil, account.ErrAccountNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

func (s *store) GetMany(_ context.Context, addresses ...ed25519.PublicKey) ([]*account.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*account.Record, len(addresses))
	for i, address := range addresses {
		if item, ok := s.records[string(address)]; ok {
			cloned := item.Clone()
			res[i] = &cloned
		}
	}
	return res, nil
}

func (s *store) GetProgramAccounts(_ context.Context, owner ed25519.PublicKey) ([]*account.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []*account.Record
	for _, item := range s.records {
		if bytes.Equal(item.Owner, owner) {
			cloned := item.Clone()
			res = append(res, &cloned)
		}
	}

	if len(res) == 0 {
		return nil, account.ErrAccountNotFound
	}

	sort.Sort(ByAddress(res))
	return res, nil
}

func (s *store) Commit(_ context.Context, slot uint64, records ...*account.Record) error {
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		if record.IsEmpty() {
			delete(s.records, string(record.Address))
			continue
		}

		record.Slot = slot
		cloned := record.Clone()
		s.records[string(record.Address)] = &cloned
	}

	return nil
}
