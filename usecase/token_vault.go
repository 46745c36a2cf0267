package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"
)

// ITokenVault is the only path to stored provider credentials.
type ITokenVault interface {
	// Get returns apperror.ErrNotConnected when the user has no credential on file.
	Get(ctx context.Context, userID, platform string) (*model.OAuthCredential, error)
	Save(ctx context.Context, userID, platform, accessToken, refreshToken string, expiresAt time.Time) (*model.OAuthCredential, error)
	// Rotate replaces the tokens of a credential that is still on file. It never recreates a
	// revoked credential and returns apperror.ErrNotConnected instead.
	Rotate(ctx context.Context, userID, platform, accessToken, refreshToken string, expiresAt time.Time) (*model.OAuthCredential, error)
	Revoke(ctx context.Context, userID, platform string) error
}

type tokenVault struct {
	store repository.ISecretStore
	locks *keyedMutex
}

func NewTokenVault(store repository.ISecretStore) ITokenVault {
	return &tokenVault{store: store, locks: newKeyedMutex()}
}

func (v *tokenVault) Get(ctx context.Context, userID, platform string) (*model.OAuthCredential, error) {
	cred, err := v.store.GetCredential(ctx, userID, platform)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotConnected("vault.Get", "no "+platform+" credential on file")
		}
		return nil, err
	}
	return cred, nil
}

func (v *tokenVault) Save(ctx context.Context, userID, platform, accessToken, refreshToken string, expiresAt time.Time) (*model.OAuthCredential, error) {
	if userID == "" || accessToken == "" {
		return nil, apperror.Validation("vault.Save", "user id and access token are required")
	}
	unlock := v.locks.Lock(credentialKey(userID, platform))
	defer unlock()

	cred := &model.OAuthCredential{
		UserID:       userID,
		Platform:     platform,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt.UTC(),
	}
	if err := v.store.SaveCredential(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

func (v *tokenVault) Rotate(ctx context.Context, userID, platform, accessToken, refreshToken string, expiresAt time.Time) (*model.OAuthCredential, error) {
	if userID == "" || accessToken == "" {
		return nil, apperror.Validation("vault.Rotate", "user id and access token are required")
	}
	unlock := v.locks.Lock(credentialKey(userID, platform))
	defer unlock()

	cred := &model.OAuthCredential{
		UserID:       userID,
		Platform:     platform,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt.UTC(),
	}
	if err := v.store.UpdateCredential(ctx, cred); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotConnected("vault.Rotate", platform+" credential was revoked")
		}
		return nil, err
	}
	return cred, nil
}

func (v *tokenVault) Revoke(ctx context.Context, userID, platform string) error {
	unlock := v.locks.Lock(credentialKey(userID, platform))
	defer unlock()
	return v.store.DeleteCredential(ctx, userID, platform)
}

func credentialKey(userID, platform string) string {
	return userID + ":" + platform
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
