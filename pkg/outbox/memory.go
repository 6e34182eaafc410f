package outbox

import (
	"sync"

	"github.com/samber/lo"

	"github.com/speechbot/speechbot/pkg/types"
)

// MemoryStorage keeps the pending queue in process memory. It is the
// default for tests and short-lived clients; durable clients supply
// their own Storage.
type MemoryStorage struct {
	mu  sync.Mutex
	ops []PendingOperation
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Append(op PendingOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, op)
	return nil
}

func (s *MemoryStorage) List() ([]PendingOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingOperation, len(s.ops))
	copy(out, s.ops)
	return out, nil
}

func (s *MemoryStorage) Update(op PendingOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ops {
		if s.ops[i].CorrelationID == op.CorrelationID {
			s.ops[i] = op
			return nil
		}
	}
	return types.ErrOperationNotFound
}

func (s *MemoryStorage) Remove(correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = lo.Reject(s.ops, func(op PendingOperation, _ int) bool {
		return op.CorrelationID == correlationID
	})
	return nil
}
