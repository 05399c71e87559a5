// Package session maps opaque control-link tokens to the Discord user who
// requested them. Sessions live in memory only; losing them on restart is
// acceptable, the user just asks for a fresh link.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Pooh303/sec3music-bot/internal/music"
)

const DefaultTTL = 24 * time.Hour

// entry is one issued control link.
type entry struct {
	user      music.UserRef
	createdAt time.Time
}

// Registry is a process-scoped token store with a fixed TTL. Expired
// entries are dropped lazily on read and by a periodic sweep, so tokens
// nobody ever used still get cleaned up.
type Registry struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]entry
	now      func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		ttl:      ttl,
		sessions: make(map[string]entry),
		now:      time.Now,
	}
}

// TTL returns the configured session lifetime.
func (r *Registry) TTL() time.Duration { return r.ttl }

// Issue stores a new session for user and returns its unguessable token.
func (r *Registry) Issue(user music.UserRef) string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the host is broken; do not hand out
		// a predictable token.
		panic(err)
	}
	token := hex.EncodeToString(buf)

	r.mu.Lock()
	r.sessions[token] = entry{user: user, createdAt: r.now()}
	r.mu.Unlock()

	log.Info().Str("user", user.Name).Msg("session token issued")
	return token
}

// Resolve returns the identity behind token. Tokens are multi-use within
// the TTL; an expired token is deleted on the spot.
func (r *Registry) Resolve(token string) (music.UserRef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[token]
	if !ok {
		return music.UserRef{}, false
	}
	if r.now().Sub(e.createdAt) > r.ttl {
		delete(r.sessions, token)
		log.Info().Str("user", e.user.Name).Msg("session token expired on read")
		return music.UserRef{}, false
	}
	return e.user, true
}

// Sweep removes every entry older than the TTL and returns how many were
// dropped. Deletion is idempotent, so the sweep never conflicts with reads.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for token, e := range r.sessions {
		if e.createdAt.Before(cutoff) {
			delete(r.sessions, token)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions (expired-but-unswept included).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// RunSweeper sweeps expired sessions every interval until ctx is done.
// Call from main in its own goroutine.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				log.Info().Int("removed", n).Msg("swept expired sessions")
			}
		}
	}
}
