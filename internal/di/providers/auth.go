package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/readtrack-server/internal/auth"
	"github.com/listenupapp/readtrack-server/internal/clock"
	"github.com/listenupapp/readtrack-server/internal/config"
	"github.com/listenupapp/readtrack-server/internal/logger"
)

// AuthKey wraps the authentication key bytes.
type AuthKey []byte

// ProvideAuthKey resolves the token key from config or the data directory.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key, err := auth.ResolveKey(cfg.Auth.TokenKeyHex, cfg.App.DataDir)
	if err != nil {
		return nil, err
	}

	log.Info("Authentication key loaded",
		"from_env", cfg.Auth.TokenKeyHex != "",
		"token_duration", cfg.Auth.TokenDuration,
	)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService(authKey, cfg.Auth.TokenDuration, clock.System{})
}
