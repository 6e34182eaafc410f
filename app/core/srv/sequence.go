package srv

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/speechbot/speechbot/pkg/types/protocol"
	"github.com/speechbot/speechbot/pkg/utils"
)

// SeqGen reports the highest sequence already stored for a chat, used
// to seed a cold redis counter.
type SeqGen interface {
	GetChatMessageSequence(ctx context.Context, chatID string) (int64, error)
}

// SeqSrv hands out strictly increasing per-chat sequence numbers.
// Redis INCR is the fast path; a cold counter is seeded from the
// message table under a per-chat mutex so two racing appends cannot
// both seed.
type SeqSrv struct {
	redis redis.UniversalClient
	gen   SeqGen

	mu    sync.Mutex
	seeds map[string]*sync.Mutex
}

// seqIdleTTL lets counters of dormant chats expire. Safe because a cold
// counter is re-seeded from the highest stored sequence.
const seqIdleTTL = time.Hour * 24 * 7

func SetupSeqSrv(rd redis.UniversalClient, gen SeqGen) *SeqSrv {
	return &SeqSrv{
		redis: rd,
		gen:   gen,
		seeds: make(map[string]*sync.Mutex),
	}
}

func ApplySeq(rd redis.UniversalClient, gen SeqGen) ApplyFunc {
	return func(s *Srv) {
		s.seq = SetupSeqSrv(rd, gen)
	}
}

func (s *SeqSrv) GenMessageID() string {
	return utils.GenUniqIDStr()
}

func (s *SeqSrv) GetChatSeqID(ctx context.Context, chatID string) (int64, error) {
	key := protocol.GenChatSequenceKey(chatID)

	lock := s.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	exists, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		// counter is cold; seed it from the store before handing out
		max, err := s.gen.GetChatMessageSequence(ctx, chatID)
		if err != nil {
			return 0, err
		}
		if err = s.redis.SetNX(ctx, key, max, 0).Err(); err != nil {
			return 0, err
		}
	}

	seq, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	s.redis.Expire(ctx, key, seqIdleTTL)
	return seq, nil
}

// DropChatSeq releases the counter, e.g. after chat deletion.
func (s *SeqSrv) DropChatSeq(ctx context.Context, chatID string) error {
	return s.redis.Del(ctx, protocol.GenChatSequenceKey(chatID)).Err()
}

func (s *SeqSrv) chatLock(chatID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.seeds[chatID]
	if !ok {
		lock = &sync.Mutex{}
		s.seeds[chatID] = lock
	}
	return lock
}
