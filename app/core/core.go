package core

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/speechbot/speechbot/app/core/srv"
	"github.com/speechbot/speechbot/app/store"
	"github.com/speechbot/speechbot/app/store/sqlstore"
	"github.com/speechbot/speechbot/pkg/utils"
)

type Core struct {
	cfg CoreConfig
	srv *srv.Srv

	stores     func() *sqlstore.Provider
	redis      redis.UniversalClient
	httpClient *http.Client
	httpEngine *gin.Engine

	metrics *Metrics
}

func MustSetupCore(cfg CoreConfig) *Core {
	{
		var writer io.Writer = os.Stdout
		if cfg.Log.Path != "" {
			writer = &lumberjack.Logger{
				Filename:   cfg.Log.Path,
				MaxSize:    500, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}
		}
		l := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level: cfg.Log.SlogLevel(),
		}))
		slog.SetDefault(l)
	}

	utils.SetupIDWorker(1)

	core := &Core{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Second * 3},
		metrics:    NewMetrics("speechbot", "core"),
		httpEngine: gin.New(),
	}

	setupSqlStore(core)
	setupRedis(core)

	core.srv = srv.SetupSrvs(
		srv.ApplyAI(cfg.AI),
		srv.ApplyTower(cfg.Websocket.HeartbeatInterval),
		srv.ApplySeq(core.redis, &storeSeqGen{msgStore: core.Store().MessageStore()}),
	)

	return core
}

// storeSeqGen seeds cold sequence counters from the message table.
type storeSeqGen struct {
	msgStore store.MessageStore
}

func (s *storeSeqGen) GetChatMessageSequence(ctx context.Context, chatID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()
	max, err := s.msgStore.MaxSequence(ctx, chatID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return max, nil
}

func (s *Core) Cfg() CoreConfig {
	return s.cfg
}

func (s *Core) HttpEngine() *gin.Engine {
	return s.httpEngine
}

func (s *Core) Metrics() *Metrics {
	return s.metrics
}

func setupSqlStore(core *Core) {
	core.stores = sqlstore.MustSetup(core.cfg.Postgres)
	if err := core.stores().Install(); err != nil {
		panic(err)
	}
}

func setupRedis(core *Core) {
	core.redis = redis.NewClient(&redis.Options{
		Addr:         core.cfg.Redis.Addr,
		Password:     core.cfg.Redis.Password,
		DB:           core.cfg.Redis.DB,
		PoolSize:     core.cfg.Redis.PoolSize,
		MinIdleConns: core.cfg.Redis.MinIdleConns,
		MaxRetries:   core.cfg.Redis.MaxRetries,
	})
}

func (s *Core) Store() *sqlstore.Provider {
	return s.stores()
}

// NewCoreWithStores builds a bare Core around an existing store
// provider. Logic tests use it to exercise store-backed paths against
// fakes; the tower and AI services stay unconfigured.
func NewCoreWithStores(provider *sqlstore.Provider) *Core {
	return &Core{
		srv:    srv.SetupSrvs(),
		stores: func() *sqlstore.Provider { return provider },
	}
}

func (s *Core) Redis() redis.UniversalClient {
	return s.redis
}

func (s *Core) Srv() *srv.Srv {
	return s.srv
}
