package db

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/lib/pq"

	"github.com/ballee/dbsync/internal/models"
)

// ConnString builds a postgres connection URL for an environment.
// Credentials are URL-encoded so passwords with special characters survive.
func ConnString(env models.Environment, password string) string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   env.Addr(),
		Path:   "/" + env.Database,
	}
	if env.User != "" {
		if password != "" {
			u.User = url.UserPassword(env.User, password)
		} else {
			u.User = url.User(env.User)
		}
	}

	query := url.Values{}
	if env.Host == "localhost" || env.Host == "127.0.0.1" {
		query.Set("sslmode", "disable")
	} else {
		query.Set("sslmode", "require")
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// Open connects to an environment and verifies the connection is live.
// The pool is kept deliberately small: the engine runs one phase at a time.
func Open(env models.Environment, password string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", ConnString(env, password))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", env.ID, err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping %s at %s: %w", env.ID, env.Addr(), err)
	}

	conn.SetMaxOpenConns(2)
	conn.SetMaxIdleConns(1)
	return conn, nil
}
