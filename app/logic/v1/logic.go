package v1

import (
	"context"

	"github.com/speechbot/speechbot/app/core"
	"github.com/speechbot/speechbot/pkg/types"
)

const (
	TOKEN_CONTEXT_KEY = "__speechbot.access_token"
	LANGUAGE_KEY      = "__speechbot.accept_language"
)

// InjectTokenClaim reads the authenticated identity the middleware
// stored on the request context.
func InjectTokenClaim(ctx context.Context) (types.TokenClaims, bool) {
	val, ok := ctx.Value(TOKEN_CONTEXT_KEY).(types.TokenClaims)
	return val, ok
}

func InjectLanguage(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(LANGUAGE_KEY).(string)
	return val, ok
}

type UserInfo struct {
	user   string
	device string
}

func SetupUserInfo(ctx context.Context, _ *core.Core) UserInfo {
	claims, _ := InjectTokenClaim(ctx)
	return UserInfo{
		user:   claims.UserID,
		device: claims.DeviceID,
	}
}

func (u UserInfo) GetUserInfo() UserInfo {
	return u
}

func (u UserInfo) User() string {
	return u.user
}

func (u UserInfo) Device() string {
	return u.device
}
