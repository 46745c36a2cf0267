package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strconv"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"
	"wellness-sync/infrastructure/configuration"
	"wellness-sync/infrastructure/logger"

	"github.com/google/uuid"
)

type IAuthorizationFlow interface {
	// BuildAuthorizationURL returns the provider authorize URL and the opaque state it carries.
	BuildAuthorizationURL(origin, returnURL string) (authURL, state string)
	// ExchangeCode trades an authorization code for tokens on behalf of an authenticated user.
	ExchangeCode(ctx context.Context, code, userID, origin string) (*model.StravaAthlete, error)
	DecodeState(state string) (*model.AuthorizationState, error)
}

type authorizationFlow struct {
	strava      repository.IStrava
	vault       ITokenVault
	connections repository.IDeviceConnection
	app         configuration.App
	strCfg      configuration.Strava
}

func NewAuthorizationFlow(strava repository.IStrava, vault ITokenVault, connections repository.IDeviceConnection, cfg *configuration.Config) IAuthorizationFlow {
	return &authorizationFlow{strava: strava, vault: vault, connections: connections, app: cfg.App, strCfg: cfg.Strava}
}

// RedirectURI trusts the request origin only when it is allow-listed.
func (f *authorizationFlow) RedirectURI(origin string) string {
	base := f.app.PublicURL
	if origin != "" && f.app.IsAllowedOrigin(origin) {
		base = origin
	}
	return base + f.strCfg.CallbackPath
}

func (f *authorizationFlow) BuildAuthorizationURL(origin, returnURL string) (string, string) {
	state := EncodeState(model.AuthorizationState{UUID: uuid.NewString(), ReturnURL: returnURL})
	return f.strava.AuthCodeURL(state, f.RedirectURI(origin)), state
}

func (f *authorizationFlow) ExchangeCode(ctx context.Context, code, userID, origin string) (*model.StravaAthlete, error) {
	if userID == "" {
		return nil, apperror.Auth("auth.ExchangeCode", "an authenticated session is required to link a provider account")
	}
	if code == "" {
		return nil, apperror.Validation("auth.ExchangeCode", "code is required")
	}

	grant, err := f.strava.ExchangeCode(ctx, code, f.RedirectURI(origin))
	if err != nil {
		return nil, err
	}
	if _, err := f.vault.Save(ctx, userID, model.PlatformStrava, grant.AccessToken, grant.RefreshToken, grant.ExpiresAt); err != nil {
		return nil, err
	}
	if grant.Athlete == nil {
		logger.GetLogger().WithField("user_id", userID).Warn("Token grant without athlete, connection not linked")
		return nil, nil
	}

	conn := &model.DeviceConnection{
		UserID:         userID,
		Platform:       model.PlatformStrava,
		ProviderUserID: strconv.FormatInt(grant.Athlete.ID, 10),
		IsActive:       true,
	}
	if err := f.connections.UpsertConnection(ctx, conn); err != nil {
		return nil, err
	}
	logger.GetLogger().
		WithField("user_id", userID).
		WithField("athlete_id", conn.ProviderUserID).
		Info("Strava account linked")
	return grant.Athlete, nil
}

func (f *authorizationFlow) DecodeState(state string) (*model.AuthorizationState, error) {
	return DecodeState(state)
}

func EncodeState(s model.AuthorizationState) string {
	raw, _ := json.Marshal(s)
	return base64.StdEncoding.EncodeToString(raw)
}

func DecodeState(state string) (*model.AuthorizationState, error) {
	raw, err := base64.StdEncoding.DecodeString(state)
	if err != nil {
		if raw, err = base64.RawURLEncoding.DecodeString(state); err != nil {
			return nil, apperror.Validation("auth.DecodeState", "state is not base64")
		}
	}
	var s model.AuthorizationState
	if err := json.Unmarshal(raw, &s); err != nil || s.UUID == "" {
		return nil, apperror.Validation("auth.DecodeState", "state is malformed")
	}
	return &s, nil
}
