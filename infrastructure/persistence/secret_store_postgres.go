package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"
)

// SecretStorePostgres keeps tokens in strava_tokens, encrypted with pgcrypto under a
// server-held key. Plaintext tokens only exist inside this process.
type SecretStorePostgres struct {
	db  *sql.DB
	key string
}

func NewSecretStorePostgres(db *sql.DB, encryptionKey string) repository.ISecretStore {
	return &SecretStorePostgres{db: db, key: encryptionKey}
}

func (r *SecretStorePostgres) SaveCredential(ctx context.Context, c *model.OAuthCredential) error {
	c.UpdatedAt = time.Now().UTC()
	q := `INSERT INTO strava_tokens (user_id, platform, access_token, refresh_token, expires_at, updated_at)
		  VALUES ($1, $2, pgp_sym_encrypt($3, $7), pgp_sym_encrypt($4, $7), $5, $6)
		  ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			expires_at=EXCLUDED.expires_at,
			updated_at=EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, q, c.UserID, c.Platform, c.AccessToken, c.RefreshToken, c.ExpiresAt, c.UpdatedAt, r.key); err != nil {
		return apperror.Persistence("secretstore.Save", err)
	}
	return nil
}

func (r *SecretStorePostgres) UpdateCredential(ctx context.Context, c *model.OAuthCredential) error {
	c.UpdatedAt = time.Now().UTC()
	q := `UPDATE strava_tokens SET access_token=pgp_sym_encrypt($3, $6), refresh_token=pgp_sym_encrypt($4, $6), expires_at=$5, updated_at=$7
		  WHERE user_id=$1 AND platform=$2`
	res, err := r.db.ExecContext(ctx, q, c.UserID, c.Platform, c.AccessToken, c.RefreshToken, c.ExpiresAt, r.key, c.UpdatedAt)
	return updateResult("secretstore.Update", res, err)
}

func updateResult(op string, res sql.Result, err error) error {
	if err != nil {
		return apperror.Persistence(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.Persistence(op, err)
	}
	if n == 0 {
		return apperror.NotFound(op, "no credential stored")
	}
	return nil
}

func (r *SecretStorePostgres) GetCredential(ctx context.Context, userID, platform string) (*model.OAuthCredential, error) {
	row := r.db.QueryRowContext(ctx, `SELECT user_id, platform, pgp_sym_decrypt(access_token, $3), pgp_sym_decrypt(refresh_token, $3), expires_at, updated_at
		FROM strava_tokens WHERE user_id=$1 AND platform=$2`, userID, platform, r.key)
	c := &model.OAuthCredential{}
	if err := row.Scan(&c.UserID, &c.Platform, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("secretstore.Get", "no credential stored")
		}
		return nil, apperror.Persistence("secretstore.Get", err)
	}
	return c, nil
}

func (r *SecretStorePostgres) DeleteCredential(ctx context.Context, userID, platform string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM strava_tokens WHERE user_id=$1 AND platform=$2`, userID, platform); err != nil {
		return apperror.Persistence("secretstore.Delete", err)
	}
	return nil
}
