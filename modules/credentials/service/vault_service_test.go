package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"clinic-sync/core/config"
	"clinic-sync/core/crypto"
	"clinic-sync/core/errors"
	"clinic-sync/modules/credentials/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeConnectionRepo struct {
	conn *entity.GoogleConnection
}

func (f *fakeConnectionRepo) Get(ctx context.Context) (*entity.GoogleConnection, error) {
	if f.conn == nil {
		return nil, nil
	}
	copied := *f.conn
	return &copied, nil
}

func (f *fakeConnectionRepo) Save(ctx context.Context, conn *entity.GoogleConnection) error {
	copied := *conn
	f.conn = &copied
	return nil
}

func (f *fakeConnectionRepo) UpdateAccessToken(ctx context.Context, accessToken string, expiresAt time.Time) error {
	f.conn.AccessToken = accessToken
	f.conn.TokenExpiresAt = expiresAt
	return nil
}

func (f *fakeConnectionRepo) UpdateCalendarSyncEnabled(ctx context.Context, enabled bool) error {
	f.conn.CalendarSyncEnabled = enabled
	return nil
}

func (f *fakeConnectionRepo) Delete(ctx context.Context) error {
	f.conn = nil
	return nil
}

type fakeCache struct {
	states     map[string]uuid.UUID
	loopGuards map[uuid.UUID]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{states: map[string]uuid.UUID{}, loopGuards: map[uuid.UUID]bool{}}
}

func (f *fakeCache) SetLoopGuard(ctx context.Context, id uuid.UUID) error {
	f.loopGuards[id] = true
	return nil
}

func (f *fakeCache) ConsumeLoopGuard(ctx context.Context, id uuid.UUID) (bool, error) {
	set := f.loopGuards[id]
	delete(f.loopGuards, id)
	return set, nil
}

func (f *fakeCache) SaveOAuthState(ctx context.Context, state string, actorID uuid.UUID) error {
	f.states[state] = actorID
	return nil
}

func (f *fakeCache) ConsumeOAuthState(ctx context.Context, state string) (uuid.UUID, bool, error) {
	actorID, ok := f.states[state]
	delete(f.states, state)
	return actorID, ok, nil
}

func (f *fakeCache) Ping(ctx context.Context) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		GoogleAPI: config.GoogleAPIConfig{
			ClientID:     "test-client",
			ClientSecret: "test-secret",
		},
		App: config.AppConfig{
			PublicBaseURL: "http://localhost:7070",
		},
		Sync: config.SyncConfig{CalendarEnabled: true},
	}
}

func newTestVault(t *testing.T, repo *fakeConnectionRepo, cache *fakeCache) *vaultService {
	t.Helper()
	config.SetForTest(testConfig())

	cipher, err := crypto.NewTokenCipher("unit-test-signing-secret")
	require.NoError(t, err)

	return NewVaultService(repo, cache, cipher).(*vaultService)
}

func encryptedConnection(t *testing.T, s *vaultService, access, refresh string, expiresAt time.Time) *entity.GoogleConnection {
	t.Helper()
	encAccess, err := s.cipher.Encrypt(access)
	require.NoError(t, err)
	encRefresh, err := s.cipher.Encrypt(refresh)
	require.NoError(t, err)
	return &entity.GoogleConnection{
		AccessToken:    encAccess,
		RefreshToken:   encRefresh,
		TokenExpiresAt: expiresAt,
	}
}

func TestBuildAuthorizationURLStoresStateForActor(t *testing.T) {
	cache := newFakeCache()
	s := newTestVault(t, &fakeConnectionRepo{}, cache)
	actorID := uuid.New()

	authURL, appErr := s.BuildAuthorizationURL(context.Background(), actorID)
	require.Nil(t, appErr)
	require.NotEmpty(t, authURL)

	assert.Contains(t, authURL, "access_type=offline")
	assert.Contains(t, authURL, "prompt=consent")
	assert.Contains(t, authURL, "client_id=test-client")

	require.Len(t, cache.states, 1)
	for _, storedActor := range cache.states {
		assert.Equal(t, actorID, storedActor)
	}
}

func TestBuildAuthorizationURLEmptyWhenUnconfigured(t *testing.T) {
	cache := newFakeCache()
	s := newTestVault(t, &fakeConnectionRepo{}, cache)

	cfg := testConfig()
	cfg.GoogleAPI.ClientID = ""
	config.SetForTest(cfg)

	authURL, appErr := s.BuildAuthorizationURL(context.Background(), uuid.New())
	require.Nil(t, appErr)
	assert.Empty(t, authURL)
	assert.Empty(t, cache.states)
}

func TestExchangeCodeRejectsUnknownState(t *testing.T) {
	s := newTestVault(t, &fakeConnectionRepo{}, newFakeCache())

	appErr := s.ExchangeCode(context.Background(), "auth-code", "never-issued")
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrUnauthorized, appErr.Code)
}

func TestExchangeCodeStoresEncryptedTokens(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-plain","refresh_token":"rt-plain","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	repo := &fakeConnectionRepo{}
	cache := newFakeCache()
	s := newTestVault(t, repo, cache)
	s.endpoint = oauth2.Endpoint{AuthURL: tokenServer.URL + "/auth", TokenURL: tokenServer.URL + "/token"}

	actorID := uuid.New()
	require.NoError(t, cache.SaveOAuthState(context.Background(), "good-state", actorID))

	appErr := s.ExchangeCode(context.Background(), "auth-code", "good-state")
	require.Nil(t, appErr)

	require.NotNil(t, repo.conn)
	assert.Equal(t, actorID, repo.conn.ConnectedBy)
	assert.True(t, repo.conn.CalendarSyncEnabled)

	// Stored values are ciphertext, never the raw tokens.
	assert.NotEqual(t, "at-plain", repo.conn.AccessToken)
	assert.NotEqual(t, "rt-plain", repo.conn.RefreshToken)

	access, err := s.cipher.Decrypt(repo.conn.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "at-plain", access)
	refresh, err := s.cipher.Decrypt(repo.conn.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "rt-plain", refresh)
}

func TestExchangeCodeRequiresRefreshToken(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-plain","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	cache := newFakeCache()
	s := newTestVault(t, &fakeConnectionRepo{}, cache)
	s.endpoint = oauth2.Endpoint{AuthURL: tokenServer.URL + "/auth", TokenURL: tokenServer.URL + "/token"}
	require.NoError(t, cache.SaveOAuthState(context.Background(), "good-state", uuid.New()))

	appErr := s.ExchangeCode(context.Background(), "auth-code", "good-state")
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrRemoteAPI, appErr.Code)
}

func TestGetAccessTokenSkipsRefreshOutsideMargin(t *testing.T) {
	var refreshCalls atomic.Int32
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-new","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	repo := &fakeConnectionRepo{}
	s := newTestVault(t, repo, newFakeCache())
	s.endpoint.TokenURL = tokenServer.URL
	s.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }

	// Expires an hour from "now": well outside the five-minute margin.
	repo.conn = encryptedConnection(t, s, "at-old", "rt", s.now().Add(time.Hour))

	token, appErr := s.GetAccessToken(context.Background())
	require.Nil(t, appErr)
	assert.Equal(t, "at-old", token)
	assert.Equal(t, int32(0), refreshCalls.Load())
}

func TestGetAccessTokenRefreshesInsideMargin(t *testing.T) {
	var refreshCalls atomic.Int32
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "rt", r.Form.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-new","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	repo := &fakeConnectionRepo{}
	s := newTestVault(t, repo, newFakeCache())
	s.endpoint.TokenURL = tokenServer.URL
	s.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }

	// Expires in three minutes: inside the margin, so one refresh happens.
	repo.conn = encryptedConnection(t, s, "at-old", "rt", s.now().Add(3*time.Minute))

	token, appErr := s.GetAccessToken(context.Background())
	require.Nil(t, appErr)
	assert.Equal(t, "at-new", token)
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, s.now().Add(time.Hour), repo.conn.TokenExpiresAt)
}

func TestGetAccessTokenFailsWhenDisconnected(t *testing.T) {
	s := newTestVault(t, &fakeConnectionRepo{}, newFakeCache())

	_, appErr := s.GetAccessToken(context.Background())
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrAuthFailed, appErr.Code)
}

func TestGetAccessTokenFailsOnUnreadableCiphertext(t *testing.T) {
	repo := &fakeConnectionRepo{}
	s := newTestVault(t, repo, newFakeCache())
	s.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }

	otherCipher, err := crypto.NewTokenCipher("some-other-secret")
	require.NoError(t, err)
	foreign, err := otherCipher.Encrypt("at-old")
	require.NoError(t, err)

	repo.conn = &entity.GoogleConnection{
		AccessToken:    foreign,
		RefreshToken:   foreign,
		TokenExpiresAt: s.now().Add(time.Hour),
	}

	_, appErr := s.GetAccessToken(context.Background())
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrAuthFailed, appErr.Code)
}

func TestRefreshClassifiesRevokedGrant(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been revoked."}`))
	}))
	defer tokenServer.Close()

	repo := &fakeConnectionRepo{}
	s := newTestVault(t, repo, newFakeCache())
	s.endpoint.TokenURL = tokenServer.URL
	repo.conn = encryptedConnection(t, s, "at", "rt", time.Now().Add(time.Hour))

	appErr := s.RefreshAccessToken(context.Background())
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrAuthFailed, appErr.Code)
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) OnCalendarConnected(ctx context.Context) {
	o.events = append(o.events, "connected")
}

func (o *recordingObserver) OnCalendarDisconnecting(ctx context.Context) {
	o.events = append(o.events, "disconnecting")
}

func (o *recordingObserver) OnCalendarDisconnected(ctx context.Context) {
	o.events = append(o.events, "disconnected")
}

func TestDisconnectNotifiesBeforeAndAfterErase(t *testing.T) {
	repo := &fakeConnectionRepo{}
	s := newTestVault(t, repo, newFakeCache())
	repo.conn = encryptedConnection(t, s, "at", "rt", time.Now().Add(time.Hour))

	obs := &recordingObserver{}
	s.RegisterObserver(obs)

	appErr := s.Disconnect(context.Background())
	require.Nil(t, appErr)

	assert.Nil(t, repo.conn)
	assert.Equal(t, []string{"disconnecting", "disconnected"}, obs.events)
}

func TestIsConnected(t *testing.T) {
	repo := &fakeConnectionRepo{}
	s := newTestVault(t, repo, newFakeCache())

	assert.False(t, s.IsConnected(context.Background()))

	repo.conn = encryptedConnection(t, s, "at", "rt", time.Now().Add(time.Hour))
	assert.True(t, s.IsConnected(context.Background()))
}
