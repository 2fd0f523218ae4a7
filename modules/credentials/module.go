package credentials

import (
	"context"
	"fmt"

	"clinic-sync/core/cache"
	"clinic-sync/core/config"
	"clinic-sync/core/crypto"
	"clinic-sync/core/database"
	"clinic-sync/core/logger"
	"clinic-sync/core/middleware"
	"clinic-sync/modules/credentials/controller"
	"clinic-sync/modules/credentials/repository"
	"clinic-sync/modules/credentials/router"
	"clinic-sync/modules/credentials/service"

	"github.com/labstack/echo/v4"
)

// Init wires the credential vault and returns its service for the calendar
// module to draw access tokens from.
func Init(e *echo.Echo, db database.IDatabase, c cache.Cache) (service.VaultService, error) {
	cfg, ok := config.GetSafe()
	if !ok {
		return nil, fmt.Errorf("config not initialized")
	}

	settingsRepo := repository.NewSettingsRepository(db)
	secret, err := cipherSecret(context.Background(), cfg, settingsRepo)
	if err != nil {
		return nil, fmt.Errorf("resolve cipher secret: %w", err)
	}

	cipher, err := crypto.NewTokenCipher(secret)
	if err != nil {
		return nil, fmt.Errorf("init token cipher: %w", err)
	}

	connRepo := repository.NewConnectionRepository(db)
	vault := service.NewVaultService(connRepo, c, cipher)
	ctrl := controller.NewCredentialsController(vault)
	mw := middleware.NewMiddleware()

	router.NewCredentialsRouter(ctrl).Setup(e, mw)
	return vault, nil
}

// cipherSecret prefers the configured signing secret and otherwise generates
// one on first boot, persisting it so stored tokens survive restarts.
func cipherSecret(ctx context.Context, cfg *config.Config, settings repository.SettingsRepository) (string, error) {
	if cfg.App.SigningSecret != "" {
		return cfg.App.SigningSecret, nil
	}

	stored, err := settings.Get(ctx, repository.SettingCipherSecret)
	if err != nil {
		return "", err
	}
	if stored != "" {
		return stored, nil
	}

	generated, err := crypto.GenerateSecret()
	if err != nil {
		return "", err
	}
	if err := settings.Set(ctx, repository.SettingCipherSecret, generated); err != nil {
		return "", err
	}
	logger.Info("Credentials:Init:GeneratedCipherSecret")
	return generated, nil
}
