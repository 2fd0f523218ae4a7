package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"clinic-sync/core/cache"
	"clinic-sync/core/config"
	"clinic-sync/core/constants"
	"clinic-sync/core/crypto"
	"clinic-sync/core/errors"
	"clinic-sync/core/logger"
	"clinic-sync/core/utils"
	"clinic-sync/modules/credentials/dto"
	"clinic-sync/modules/credentials/entity"
	"clinic-sync/modules/credentials/repository"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var googleScopes = []string{
	"https://www.googleapis.com/auth/calendar.events",
	"https://www.googleapis.com/auth/tasks",
}

// ConnectionObserver receives connection lifecycle notifications. The
// webhook channel manager subscribes at construction; disconnecting fires
// before credentials are erased so its stop call still has a valid token.
type ConnectionObserver interface {
	OnCalendarConnected(ctx context.Context)
	OnCalendarDisconnecting(ctx context.Context)
	OnCalendarDisconnected(ctx context.Context)
}

type VaultService interface {
	// BuildAuthorizationURL returns the Google consent URL, or "" when client
	// credentials are not configured. Callers must check for empty.
	BuildAuthorizationURL(ctx context.Context, actorID uuid.UUID) (string, *errors.AppError)
	ExchangeCode(ctx context.Context, code, state string) *errors.AppError
	RefreshAccessToken(ctx context.Context) *errors.AppError
	// GetAccessToken returns the decrypted access token, refreshing it first
	// when stored expiry is inside the safety margin. This lazy refresh is the
	// only refresh trigger; no background timer exists.
	GetAccessToken(ctx context.Context) (string, *errors.AppError)
	IsConnected(ctx context.Context) bool
	IsCalendarSyncEnabled(ctx context.Context) bool
	SetCalendarSyncEnabled(ctx context.Context, enabled bool) *errors.AppError
	Status(ctx context.Context) (*dto.ConnectionStatusResponse, *errors.AppError)
	Disconnect(ctx context.Context) *errors.AppError
	RegisterObserver(o ConnectionObserver)
}

type vaultService struct {
	repo      repository.ConnectionRepository
	cache     cache.Cache
	cipher    *crypto.TokenCipher
	observers []ConnectionObserver

	endpoint   oauth2.Endpoint
	httpClient *http.Client
	now        func() time.Time
}

func NewVaultService(repo repository.ConnectionRepository, cache cache.Cache, cipher *crypto.TokenCipher) VaultService {
	return &vaultService{
		repo:       repo,
		cache:      cache,
		cipher:     cipher,
		endpoint:   google.Endpoint,
		httpClient: &http.Client{Timeout: constants.TokenEndpointTimeout},
		now:        time.Now,
	}
}

func (s *vaultService) RegisterObserver(o ConnectionObserver) {
	s.observers = append(s.observers, o)
}

func (s *vaultService) oauthConfig() (*oauth2.Config, bool) {
	cfg, ok := config.GetSafe()
	if !ok || cfg.GoogleAPI.ClientID == "" || cfg.GoogleAPI.ClientSecret == "" {
		return nil, false
	}
	return &oauth2.Config{
		ClientID:     cfg.GoogleAPI.ClientID,
		ClientSecret: cfg.GoogleAPI.ClientSecret,
		RedirectURL:  cfg.GoogleAPI.RedirectURI(cfg.App.PublicBaseURL),
		Scopes:       googleScopes,
		Endpoint:     s.endpoint,
	}, true
}

func (s *vaultService) BuildAuthorizationURL(ctx context.Context, actorID uuid.UUID) (string, *errors.AppError) {
	oauthConfig, ok := s.oauthConfig()
	if !ok {
		return "", nil
	}

	state := utils.GenerateRandomString(32)
	if err := s.cache.SaveOAuthState(ctx, state, actorID); err != nil {
		return "", errors.NewAppError(errors.ErrInternalServer, "failed to store state token", err)
	}

	// prompt=consent forces Google to reissue a refresh token on re-consent.
	authURL := oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	return authURL, nil
}

func (s *vaultService) ExchangeCode(ctx context.Context, code, state string) *errors.AppError {
	actorID, valid, err := s.cache.ConsumeOAuthState(ctx, state)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to validate state token", err)
	}
	if !valid {
		return errors.NewAppError(errors.ErrUnauthorized, "invalid or expired state token", nil)
	}

	oauthConfig, ok := s.oauthConfig()
	if !ok {
		return errors.NewAppError(errors.ErrAuthFailed, "Google OAuth client credentials are not configured", nil)
	}

	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		logger.Error("VaultService:ExchangeCode:Exchange:Error", "error", err)
		if retrieveErr, ok := err.(*oauth2.RetrieveError); ok {
			return errors.NewAPIError(retrieveErr.Response.StatusCode, "token endpoint rejected the authorization code")
		}
		return errors.NewAppError(errors.ErrNetwork, "failed to reach token endpoint", err)
	}
	if token.AccessToken == "" {
		return errors.NewAPIError(http.StatusOK, "token response lacks an access token")
	}
	if token.RefreshToken == "" {
		return errors.NewAPIError(http.StatusOK, "token response lacks a refresh token")
	}

	encAccess, cerr := s.cipher.Encrypt(token.AccessToken)
	if cerr != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to encrypt access token", cerr)
	}
	encRefresh, cerr := s.cipher.Encrypt(token.RefreshToken)
	if cerr != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to encrypt refresh token", cerr)
	}

	cfg, _ := config.GetSafe()
	conn := &entity.GoogleConnection{
		AccessToken:         encAccess,
		RefreshToken:        encRefresh,
		TokenExpiresAt:      token.Expiry,
		ConnectedAt:         s.now(),
		ConnectedBy:         actorID,
		CalendarSyncEnabled: cfg.Sync.CalendarEnabled,
	}
	if err := s.repo.Save(ctx, conn); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to store connection", err)
	}

	logger.Info("VaultService:ExchangeCode:Connected", "actor_id", actorID, "token_expires_at", token.Expiry)

	for _, o := range s.observers {
		o.OnCalendarConnected(ctx)
	}
	return nil
}

func (s *vaultService) RefreshAccessToken(ctx context.Context) *errors.AppError {
	conn, err := s.repo.Get(ctx)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to load connection", err)
	}
	if conn == nil || conn.RefreshToken == "" {
		return errors.NewAppError(errors.ErrAuthFailed, "no refresh token stored", nil)
	}

	refreshToken, derr := s.cipher.Decrypt(conn.RefreshToken)
	if derr != nil {
		return errors.NewAppError(errors.ErrAuthFailed, "stored refresh token is unreadable", derr)
	}

	oauthConfig, ok := s.oauthConfig()
	if !ok {
		return errors.NewAppError(errors.ErrAuthFailed, "Google OAuth client credentials are not configured", nil)
	}

	data := url.Values{}
	data.Set("client_id", oauthConfig.ClientID)
	data.Set("client_secret", oauthConfig.ClientSecret)
	data.Set("refresh_token", refreshToken)
	data.Set("grant_type", "refresh_token")

	resp, err := s.httpClient.PostForm(s.endpoint.TokenURL, data)
	if err != nil {
		logger.Error("VaultService:RefreshAccessToken:PostForm:Error", "error", err)
		return errors.NewAppError(errors.ErrNetwork, "failed to reach token endpoint", err)
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return errors.NewAppError(errors.ErrNetwork, "failed to decode token response", err)
	}

	if errMsg, ok := result["error"].(string); ok {
		errDesc, _ := result["error_description"].(string)
		logger.Error("VaultService:RefreshAccessToken:GoogleError", "error", errMsg, "description", errDesc)
		if errMsg == "invalid_grant" {
			return errors.NewAppError(errors.ErrAuthFailed, "refresh token was revoked", nil)
		}
		return errors.NewAPIError(resp.StatusCode, "token refresh failed: "+errMsg)
	}

	accessToken, ok := result["access_token"].(string)
	if !ok || accessToken == "" {
		return errors.NewAPIError(resp.StatusCode, "token response lacks an access token")
	}

	expiresIn := 3600.0
	if v, ok := result["expires_in"].(float64); ok {
		expiresIn = v
	}

	encAccess, cerr := s.cipher.Encrypt(accessToken)
	if cerr != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to encrypt access token", cerr)
	}

	expiresAt := s.now().Add(time.Duration(expiresIn) * time.Second)
	if err := s.repo.UpdateAccessToken(ctx, encAccess, expiresAt); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to store refreshed token", err)
	}

	logger.Info("VaultService:RefreshAccessToken:Success", "token_expires_at", expiresAt)
	return nil
}

func (s *vaultService) GetAccessToken(ctx context.Context) (string, *errors.AppError) {
	conn, err := s.repo.Get(ctx)
	if err != nil {
		return "", errors.NewAppError(errors.ErrInternalServer, "failed to load connection", err)
	}
	if conn == nil || conn.AccessToken == "" {
		return "", errors.NewAppError(errors.ErrAuthFailed, "Google Calendar is not connected", nil)
	}

	if s.now().After(conn.TokenExpiresAt.Add(-constants.AccessTokenRefreshMargin)) {
		if appErr := s.RefreshAccessToken(ctx); appErr != nil {
			return "", appErr
		}
		conn, err = s.repo.Get(ctx)
		if err != nil || conn == nil {
			return "", errors.NewAppError(errors.ErrInternalServer, "failed to reload connection", err)
		}
	}

	accessToken, derr := s.cipher.Decrypt(conn.AccessToken)
	if derr != nil {
		return "", errors.NewAppError(errors.ErrAuthFailed, "stored access token is unreadable", derr)
	}
	return accessToken, nil
}

func (s *vaultService) IsConnected(ctx context.Context) bool {
	conn, err := s.repo.Get(ctx)
	if err != nil {
		logger.Error("VaultService:IsConnected:Error", "error", err)
		return false
	}
	return conn != nil && conn.AccessToken != "" && conn.RefreshToken != ""
}

func (s *vaultService) IsCalendarSyncEnabled(ctx context.Context) bool {
	conn, err := s.repo.Get(ctx)
	if err != nil {
		logger.Error("VaultService:IsCalendarSyncEnabled:Error", "error", err)
		return false
	}
	return conn != nil && conn.CalendarSyncEnabled
}

func (s *vaultService) SetCalendarSyncEnabled(ctx context.Context, enabled bool) *errors.AppError {
	conn, err := s.repo.Get(ctx)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to load connection", err)
	}
	if conn == nil {
		return errors.NewAppError(errors.ErrNotFound, "Google Calendar is not connected", nil)
	}
	if err := s.repo.UpdateCalendarSyncEnabled(ctx, enabled); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to update toggle", err)
	}
	return nil
}

func (s *vaultService) Status(ctx context.Context) (*dto.ConnectionStatusResponse, *errors.AppError) {
	conn, err := s.repo.Get(ctx)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load connection", err)
	}
	if conn == nil {
		return &dto.ConnectionStatusResponse{Connected: false}, nil
	}
	return &dto.ConnectionStatusResponse{
		Connected:           conn.AccessToken != "" && conn.RefreshToken != "",
		ConnectedAt:         conn.ConnectedAt.Format(time.RFC3339),
		TokenExpiresAt:      conn.TokenExpiresAt.Format(time.RFC3339),
		CalendarSyncEnabled: conn.CalendarSyncEnabled,
	}, nil
}

func (s *vaultService) Disconnect(ctx context.Context) *errors.AppError {
	// Channel teardown must run while the stored token is still usable.
	for _, o := range s.observers {
		o.OnCalendarDisconnecting(ctx)
	}

	if err := s.repo.Delete(ctx); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to delete connection", err)
	}

	logger.Info("VaultService:Disconnect:Success")

	for _, o := range s.observers {
		o.OnCalendarDisconnected(ctx)
	}
	return nil
}
