package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"
)

// SecretStoreMSSQL is the Azure SQL credential vault. Tokens are sealed with
// ENCRYPTBYPASSPHRASE so the database never holds them in clear text.
type SecretStoreMSSQL struct {
	db  *sql.DB
	key string
}

func NewSecretStoreMSSQL(db *sql.DB, encryptionKey string) repository.ISecretStore {
	return &SecretStoreMSSQL{db: db, key: encryptionKey}
}

// EnsureSecretStoreSchemaMSSQL creates dbo.strava_tokens if it does not exist.
func EnsureSecretStoreSchemaMSSQL(db *sql.DB) error {
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.strava_tokens') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[strava_tokens] (
        user_id NVARCHAR(128) NOT NULL,
        platform NVARCHAR(64) NOT NULL,
        access_token VARBINARY(MAX) NOT NULL,
        refresh_token VARBINARY(MAX) NOT NULL,
        expires_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL,
        CONSTRAINT PK_strava_tokens PRIMARY KEY (user_id, platform)
    );
END`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create strava_tokens (mssql): %w", err)
	}
	return nil
}

func (r *SecretStoreMSSQL) SaveCredential(ctx context.Context, c *model.OAuthCredential) error {
	c.UpdatedAt = time.Now().UTC()
	q := `MERGE dbo.strava_tokens AS target
USING (SELECT @p1 AS user_id, @p2 AS platform) AS src
ON target.user_id = src.user_id AND target.platform = src.platform
WHEN MATCHED THEN UPDATE SET
    access_token = ENCRYPTBYPASSPHRASE(@p7, @p3),
    refresh_token = ENCRYPTBYPASSPHRASE(@p7, @p4),
    expires_at = @p5,
    updated_at = @p6
WHEN NOT MATCHED THEN INSERT (user_id, platform, access_token, refresh_token, expires_at, updated_at)
    VALUES (@p1, @p2, ENCRYPTBYPASSPHRASE(@p7, @p3), ENCRYPTBYPASSPHRASE(@p7, @p4), @p5, @p6);`
	if _, err := r.db.ExecContext(ctx, q, c.UserID, c.Platform, c.AccessToken, c.RefreshToken, c.ExpiresAt, c.UpdatedAt, r.key); err != nil {
		return apperror.Persistence("secretstore.Save", err)
	}
	return nil
}

func (r *SecretStoreMSSQL) UpdateCredential(ctx context.Context, c *model.OAuthCredential) error {
	c.UpdatedAt = time.Now().UTC()
	q := `UPDATE dbo.strava_tokens SET
    access_token = ENCRYPTBYPASSPHRASE(@p6, @p3),
    refresh_token = ENCRYPTBYPASSPHRASE(@p6, @p4),
    expires_at = @p5,
    updated_at = @p7
WHERE user_id=@p1 AND platform=@p2`
	res, err := r.db.ExecContext(ctx, q, c.UserID, c.Platform, c.AccessToken, c.RefreshToken, c.ExpiresAt, r.key, c.UpdatedAt)
	return updateResult("secretstore.Update", res, err)
}

func (r *SecretStoreMSSQL) GetCredential(ctx context.Context, userID, platform string) (*model.OAuthCredential, error) {
	row := r.db.QueryRowContext(ctx, `SELECT user_id, platform,
    CAST(DECRYPTBYPASSPHRASE(@p3, access_token) AS NVARCHAR(MAX)),
    CAST(DECRYPTBYPASSPHRASE(@p3, refresh_token) AS NVARCHAR(MAX)),
    expires_at, updated_at
FROM dbo.strava_tokens WHERE user_id=@p1 AND platform=@p2`, userID, platform, r.key)
	c := &model.OAuthCredential{}
	var access, refresh sql.NullString
	if err := row.Scan(&c.UserID, &c.Platform, &access, &refresh, &c.ExpiresAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("secretstore.Get", "no credential stored")
		}
		return nil, apperror.Persistence("secretstore.Get", err)
	}
	// A wrong passphrase decrypts to NULL.
	if !access.Valid || !refresh.Valid {
		return nil, apperror.Persistence("secretstore.Get", errors.New("credential could not be decrypted"))
	}
	c.AccessToken, c.RefreshToken = access.String, refresh.String
	return c, nil
}

func (r *SecretStoreMSSQL) DeleteCredential(ctx context.Context, userID, platform string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM dbo.strava_tokens WHERE user_id=@p1 AND platform=@p2`, userID, platform); err != nil {
		return apperror.Persistence("secretstore.Delete", err)
	}
	return nil
}
