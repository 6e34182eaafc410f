package srv

import (
	"context"

	openaidriver "github.com/speechbot/speechbot/pkg/ai/openai"

	"github.com/speechbot/speechbot/pkg/ai"
	"github.com/speechbot/speechbot/pkg/types"
)

type AIConfig struct {
	Driver string       `toml:"driver"`
	Token  string       `toml:"token"`
	Proxy  string       `toml:"proxy"`
	Model  ai.ModelName `toml:"model"`
}

// AI owns the generation driver. Only openai-compatible endpoints for
// now; the Query interface keeps the door open.
type AI struct {
	chat ai.Query
}

func SetupAI(cfg AIConfig) (*AI, error) {
	return &AI{
		chat: openaidriver.New(cfg.Token, cfg.Proxy, cfg.Model),
	}, nil
}

func ApplyAI(cfg AIConfig) ApplyFunc {
	return func(s *Srv) {
		var err error
		if s.ai, err = SetupAI(cfg); err != nil {
			panic(err)
		}
	}
}

func (s *AI) NewQuery(ctx context.Context, query []*types.MessageContext) *ai.QueryOptions {
	return ai.NewQueryOptions(ctx, s.chat, query)
}

func (s *AI) Lang() string {
	return s.chat.Lang()
}
