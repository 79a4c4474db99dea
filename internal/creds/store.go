// ABOUTME: Local SQLite store for the access token and cached user profile.
// ABOUTME: Load at startup, Save on login, Clear on logout.

package creds

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "modernc.org/sqlite"

	"github.com/crosstalk-chat/crosstalk/internal/chat"
)

// ErrNoCredentials is returned by Load when nothing has been saved yet
// or the credentials were cleared.
var ErrNoCredentials = errors.New("no stored credentials")

// Credentials is the persisted login state.
type Credentials struct {
	AccessToken string
	Profile     chat.Profile
	SavedAt     time.Time
}

// Expired reports whether the access token's exp claim has passed. The
// claim is read without signature verification; the server is the
// authority, this only decides whether to prompt for re-login. Tokens
// without an exp claim, or unparseable tokens, are treated as expired.
func (c Credentials) Expired(now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.AccessToken, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return now.After(exp.Time)
}

// Store is the SQLite-backed credentials store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the credentials database at the given path,
// creating parent directories and the schema as needed.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "creds")

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating credentials directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening credentials database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS credentials (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			access_token TEXT NOT NULL,
			profile_json TEXT NOT NULL,
			saved_at DATETIME NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating credentials schema: %w", err)
	}

	logger.Debug("credentials store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the saved credentials, or ErrNoCredentials.
func (s *Store) Load() (Credentials, error) {
	row := s.db.QueryRow("SELECT access_token, profile_json, saved_at FROM credentials WHERE id = 1")

	var creds Credentials
	var profileJSON string
	err := row.Scan(&creds.AccessToken, &profileJSON, &creds.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("loading credentials: %w", err)
	}
	if err := json.Unmarshal([]byte(profileJSON), &creds.Profile); err != nil {
		return Credentials{}, fmt.Errorf("decoding stored profile: %w", err)
	}
	return creds, nil
}

// Save replaces the stored credentials with the given token and profile.
func (s *Store) Save(accessToken string, profile chat.Profile) error {
	if accessToken == "" {
		return fmt.Errorf("access token is required")
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO credentials (id, access_token, profile_json, saved_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			profile_json = excluded.profile_json,
			saved_at = excluded.saved_at
	`, accessToken, string(profileJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}

	s.logger.Info("credentials saved", "user_id", profile.ID)
	return nil
}

// Clear removes the stored credentials. Clearing an empty store is a
// no-op.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM credentials WHERE id = 1"); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	s.logger.Info("credentials cleared")
	return nil
}
