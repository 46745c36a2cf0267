package persistence

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"wellness-sync/infrastructure/configuration"

	_ "github.com/microsoft/go-mssqldb"
)

// MSSQLDSN builds a sqlserver:// URL. Azure SQL requires encrypt=true; local hosts trust the
// container's self-signed certificate.
func MSSQLDSN(cfg configuration.Db) string {
	q := url.Values{}
	if cfg.Name != "" {
		q.Set("database", cfg.Name)
	}
	q.Set("encrypt", "true")
	if cfg.Host == "localhost" || cfg.Host == "127.0.0.1" {
		q.Set("TrustServerCertificate", "true")
	}
	u := &url.URL{Scheme: "sqlserver", Host: fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewMSSQLDB creates a sql.DB for Azure SQL / SQL Server, used as the credential vault when
// database.secretsVendor is mssql.
func NewMSSQLDB(cfg configuration.Db) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", MSSQLDSN(cfg))
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(time.Minute)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
