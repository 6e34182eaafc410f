package core

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/speechbot/speechbot/app/core/srv"
)

func MustLoadBaseConfig(path string) CoreConfig {
	if path == "" {
		return LoadBaseConfigFromENV()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	conf := &CoreConfig{}
	conf.SetConfigBytes(raw)

	if err = toml.Unmarshal(raw, conf); err != nil {
		panic(err)
	}

	conf.applyDefaults()
	return *conf
}

func (c CoreConfig) LoadCustomConfig(cfg any) error {
	if len(c.bytes) == 0 {
		return nil
	}
	return toml.Unmarshal(c.bytes, cfg)
}

func LoadBaseConfigFromENV() CoreConfig {
	var c CoreConfig
	c.FromENV()
	c.applyDefaults()
	return c
}

type CoreConfig struct {
	Addr     string      `toml:"addr"`
	Log      Log         `toml:"log"`
	Postgres PGConfig    `toml:"postgres"`
	Redis    RedisConfig `toml:"redis"`

	AI        srv.AIConfig    `toml:"ai"`
	Websocket WebsocketConfig `toml:"websocket"`
	Retention RetentionConfig `toml:"retention"`

	bytes []byte `toml:"-"`
}

type WebsocketConfig struct {
	// HeartbeatInterval is the ping cadence in seconds. A connection
	// missing two intervals is dropped.
	HeartbeatInterval int64 `toml:"heartbeat_interval"`
	// QueueSize bounds the per-connection outbound queue.
	QueueSize int `toml:"queue_size"`
}

type RetentionConfig struct {
	// DeletedMessageDays is how long soft-deleted messages survive
	// before the purge job removes them.
	DeletedMessageDays int `toml:"deleted_message_days"`
	// OperationDays is how long the idempotency ledger remembers
	// correlation ids.
	OperationDays int `toml:"operation_days"`
}

func (c *CoreConfig) SetConfigBytes(raw []byte) {
	c.bytes = raw
}

func (c *CoreConfig) applyDefaults() {
	if c.Websocket.HeartbeatInterval <= 0 {
		c.Websocket.HeartbeatInterval = 30
	}
	if c.Websocket.QueueSize <= 0 {
		c.Websocket.QueueSize = 256
	}
	if c.Retention.DeletedMessageDays <= 0 {
		c.Retention.DeletedMessageDays = 30
	}
	if c.Retention.OperationDays <= 0 {
		c.Retention.OperationDays = 7
	}
}

func (c *CoreConfig) FromENV() {
	c.Addr = os.Getenv("SPEECHBOT_API_SERVICE_ADDRESS")
	c.Log.FromENV()
	c.Postgres.FromENV()
	c.Redis.FromENV()
	c.AI.Token = os.Getenv("SPEECHBOT_AI_TOKEN")
	c.AI.Proxy = os.Getenv("SPEECHBOT_AI_PROXY")
	c.AI.Model.ChatModel = os.Getenv("SPEECHBOT_AI_CHAT_MODEL")
}

type PGConfig struct {
	DSN string `toml:"dsn"`
}

func (m *PGConfig) FromENV() {
	m.DSN = os.Getenv("SPEECHBOT_POSTGRESQL_DSN")
}

func (c PGConfig) FormatDSN() string {
	return c.DSN
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`

	PoolSize     int `toml:"pool_size"`
	MinIdleConns int `toml:"min_idle_conns"`
	MaxRetries   int `toml:"max_retries"`
}

func (r *RedisConfig) FromENV() {
	r.Addr = os.Getenv("SPEECHBOT_REDIS_ADDR")
	r.Password = os.Getenv("SPEECHBOT_REDIS_PASSWORD")
	if dbStr := os.Getenv("SPEECHBOT_REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			r.DB = db
		}
	}
}

type Log struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

func (l *Log) FromENV() {
	l.Level = os.Getenv("SPEECHBOT_API_LOG_LEVEL")
	l.Path = os.Getenv("SPEECHBOT_API_LOG_PATH")
}

func (l *Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
