package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pooh303/sec3music-bot/internal/music"
)

var alice = music.UserRef{ID: "u1", Name: "alice", Avatar: "http://cdn/a.png"}

func TestIssueAndResolve(t *testing.T) {
	r := NewRegistry(time.Hour)

	token := r.Issue(alice)
	require.Len(t, token, 32, "16 random bytes hex encoded")

	// Multi-use within the TTL: both reads see the same identity.
	got, ok := r.Resolve(token)
	require.True(t, ok)
	assert.Equal(t, alice, got)

	got, ok = r.Resolve(token)
	require.True(t, ok)
	assert.Equal(t, alice, got)
}

func TestResolveUnknownToken(t *testing.T) {
	r := NewRegistry(time.Hour)

	_, ok := r.Resolve("deadbeef")
	assert.False(t, ok)
}

func TestTokensAreUnique(t *testing.T) {
	r := NewRegistry(time.Hour)

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		token := r.Issue(alice)
		_, dup := seen[token]
		require.False(t, dup)
		seen[token] = struct{}{}
	}
}

func TestLazyExpiryOnRead(t *testing.T) {
	r := NewRegistry(time.Hour)
	token := r.Issue(alice)

	// Jump the clock past the TTL.
	r.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, ok := r.Resolve(token)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len(), "expired entry is deleted on read")
}

func TestSweepRemovesUnusedExpiredSessions(t *testing.T) {
	r := NewRegistry(time.Hour)
	r.Issue(alice)
	r.Issue(music.UserRef{ID: "u2", Name: "bob"})

	assert.Equal(t, 0, r.Sweep(), "nothing expired yet")

	r.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	fresh := r.Issue(music.UserRef{ID: "u3", Name: "carol"})

	assert.Equal(t, 2, r.Sweep())
	assert.Equal(t, 1, r.Len())

	got, ok := r.Resolve(fresh)
	require.True(t, ok)
	assert.Equal(t, "carol", got.Name)
}

func TestDefaultTTL(t *testing.T) {
	r := NewRegistry(0)
	assert.Equal(t, DefaultTTL, r.TTL())
}
