package usecase

import (
	"context"
	"errors"
	"time"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"
	"wellness-sync/infrastructure/configuration"
	"wellness-sync/infrastructure/logger"

	"golang.org/x/sync/singleflight"
)

// ITokenRefresher is the single gate every provider call goes through before using a token.
type ITokenRefresher interface {
	// EnsureFresh returns cred untouched unless it has expired, in which case it performs a
	// refresh-token grant and persists the result before returning it.
	EnsureFresh(ctx context.Context, cred *model.OAuthCredential) (*model.OAuthCredential, error)
	// FreshCredential loads the user's credential from the vault and runs EnsureFresh on it.
	FreshCredential(ctx context.Context, userID, platform string) (*model.OAuthCredential, error)
}

type tokenRefresher struct {
	vault   ITokenVault
	strava  repository.IStrava
	lock    repository.IRefreshLock
	group   singleflight.Group
	skew    time.Duration
	lockTTL time.Duration
	now     func() time.Time
}

// NewTokenRefresher wires the refresher. lock may be nil when only one replica runs.
func NewTokenRefresher(vault ITokenVault, strava repository.IStrava, lock repository.IRefreshLock, cfg configuration.Sync) ITokenRefresher {
	ttl := cfg.RefreshLockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &tokenRefresher{
		vault:   vault,
		strava:  strava,
		lock:    lock,
		skew:    cfg.RefreshSkew,
		lockTTL: ttl,
		now:     time.Now,
	}
}

func (r *tokenRefresher) expired(cred *model.OAuthCredential) bool {
	return cred.Expired(r.now().Add(r.skew))
}

func (r *tokenRefresher) FreshCredential(ctx context.Context, userID, platform string) (*model.OAuthCredential, error) {
	cred, err := r.vault.Get(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	return r.EnsureFresh(ctx, cred)
}

func (r *tokenRefresher) EnsureFresh(ctx context.Context, cred *model.OAuthCredential) (*model.OAuthCredential, error) {
	if cred == nil {
		return nil, apperror.NotConnected("refresher.EnsureFresh", "no credential")
	}
	if !r.expired(cred) {
		return cred, nil
	}

	// The provider invalidates the old refresh token once it grants a new one, so the refresh
	// must reach the vault even if this caller goes away.
	key := credentialKey(cred.UserID, cred.Platform)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*r.lockTTL)
		defer cancel()
		return r.refresh(refreshCtx, cred)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logger.GetLogger().WithField("user_id", cred.UserID).Debug("Joined in-flight token refresh")
		}
		return res.Val.(*model.OAuthCredential), nil
	}
}

func (r *tokenRefresher) refresh(ctx context.Context, stale *model.OAuthCredential) (*model.OAuthCredential, error) {
	key := credentialKey(stale.UserID, stale.Platform)
	if r.lock != nil {
		release, err := r.lock.Acquire(ctx, key, r.lockTTL)
		if err != nil {
			// In-process single flight still holds; the re-read below catches a refresh
			// finished by another replica.
			logger.GetLogger().
				WithField("user_id", stale.UserID).
				WithField("error", err).
				Warn("Refresh lock unavailable, refreshing without it")
		} else {
			defer release()
		}
	}

	// Another process may have refreshed while we waited for the lock.
	current, err := r.vault.Get(ctx, stale.UserID, stale.Platform)
	if err != nil {
		return nil, err
	}
	if !r.expired(current) {
		return current, nil
	}

	grant, err := r.strava.RefreshToken(ctx, current.RefreshToken)
	if err != nil {
		logger.GetLogger().
			WithField("user_id", stale.UserID).
			WithField("error", err).
			Warn("Token refresh failed")
		if !errors.Is(err, apperror.ErrProvider) {
			err = apperror.Provider("refresher.refresh", 0, "refresh failed", err)
		}
		return nil, err
	}

	refreshToken := grant.RefreshToken
	if refreshToken == "" {
		refreshToken = current.RefreshToken
	}
	saved, err := r.vault.Rotate(ctx, stale.UserID, stale.Platform, grant.AccessToken, refreshToken, grant.ExpiresAt)
	if err != nil {
		if errors.Is(err, apperror.ErrNotConnected) {
			logger.GetLogger().WithField("user_id", stale.UserID).Info("Credential revoked during refresh, discarding grant")
		}
		return nil, err
	}
	logger.GetLogger().
		WithField("user_id", stale.UserID).
		WithField("expires_at", saved.ExpiresAt).
		Info("Token refreshed")
	return saved, nil
}
