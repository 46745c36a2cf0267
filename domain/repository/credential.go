package repository

import (
	"context"

	"wellness-sync/domain/model"
)

// ISecretStore persists provider credentials. Implementations encrypt at rest and return
// apperror.ErrNotFound when nothing is stored.
type ISecretStore interface {
	GetCredential(ctx context.Context, userID, platform string) (*model.OAuthCredential, error)
	SaveCredential(ctx context.Context, cred *model.OAuthCredential) error
	// UpdateCredential only overwrites an existing row; it returns apperror.ErrNotFound
	// instead of inserting.
	UpdateCredential(ctx context.Context, cred *model.OAuthCredential) error
	DeleteCredential(ctx context.Context, userID, platform string) error
}

type IDeviceConnection interface {
	UpsertConnection(ctx context.Context, conn *model.DeviceConnection) error
	GetConnection(ctx context.Context, userID, platform string) (*model.DeviceConnection, error)
	// ResolveUserByProviderID only returns active connections.
	ResolveUserByProviderID(ctx context.Context, platform, providerUserID string) (*model.DeviceConnection, error)
	Deactivate(ctx context.Context, userID, platform string) error
}
