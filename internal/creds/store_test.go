// ABOUTME: Tests for the credentials store round-trip and expiry check.
// ABOUTME: Uses a temp-dir SQLite database and unsigned test tokens.

package creds

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosstalk-chat/crosstalk/internal/chat"
)

func openTestStore(t *testing.T) *Store {
	s, err := Open(filepath.Join(t.TempDir(), "nested", "creds.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testProfile() chat.Profile {
	return chat.Profile{
		ID:                "u1",
		Username:          "alice",
		Email:             "alice@example.com",
		PreferredLanguage: "english",
	}
}

// tokenExpiring builds an unsigned token with the given expiry; the
// store never verifies signatures.
func tokenExpiring(t *testing.T, exp time.Time) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoCredentials)

	token := tokenExpiring(t, time.Now().Add(time.Hour))
	require.NoError(t, s.Save(token, testProfile()))

	creds, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, token, creds.AccessToken)
	assert.Equal(t, "alice", creds.Profile.Username)
	assert.Equal(t, "english", creds.Profile.PreferredLanguage)
	assert.False(t, creds.SavedAt.IsZero())
}

func TestStore_SaveOverwrites(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Save(tokenExpiring(t, time.Now().Add(time.Hour)), testProfile()))

	updated := testProfile()
	updated.PreferredLanguage = "hindi"
	newToken := tokenExpiring(t, time.Now().Add(2*time.Hour))
	require.NoError(t, s.Save(newToken, updated))

	creds, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, newToken, creds.AccessToken)
	assert.Equal(t, "hindi", creds.Profile.PreferredLanguage)
}

func TestStore_Clear(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Save(tokenExpiring(t, time.Now().Add(time.Hour)), testProfile()))
	require.NoError(t, s.Clear())

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoCredentials)

	// Clearing an empty store is a no-op.
	require.NoError(t, s.Clear())
}

func TestStore_SaveRequiresToken(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Save("", testProfile()))
}

func TestCredentials_Expired(t *testing.T) {
	now := time.Now()

	live := Credentials{AccessToken: tokenExpiring(t, now.Add(time.Hour))}
	assert.False(t, live.Expired(now))

	stale := Credentials{AccessToken: tokenExpiring(t, now.Add(-time.Hour))}
	assert.True(t, stale.Expired(now))

	garbage := Credentials{AccessToken: "not-a-token"}
	assert.True(t, garbage.Expired(now))
}
