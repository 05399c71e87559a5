package music

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog/log"
)

// Engine is the external playback engine contract. It owns audio transport
// and the playback clock; the Manager owns queue order and never reaches
// past this interface.
type Engine interface {
	Start(ctx context.Context, guildID, channelID string, t Track) error
	Stop(guildID string) error
	Pause(guildID string) error
	Resume(guildID string) error
	Seek(guildID string, seconds int) error
	Position(guildID string) int
	SetVolume(guildID string, level int) error
	Events() <-chan EngineEvent
}

// EngineEventType enumerates asynchronous transitions reported by the engine.
type EngineEventType int

const (
	TrackStarted EngineEventType = iota
	TrackFinished
	TrackFailed
)

// EngineEvent is an inbound engine transition, consumed by Manager.Run.
type EngineEvent struct {
	Type    EngineEventType
	GuildID string
	Err     error
}

// ChannelResolver resolves the configured voice channel to its guild.
type ChannelResolver interface {
	ResolveVoiceChannel(channelID string) (guildID string, err error)
}

// TrackResolver turns a URL into track metadata.
type TrackResolver interface {
	ResolveTrack(ctx context.Context, url string) (Track, error)
}

// Broadcaster fans a queue snapshot out to every connected viewer.
// Delivery is fire-and-forget; it must never fail the triggering request.
type Broadcaster interface {
	QueueUpdated(guildID string, snap Snapshot)
}

// Announcer posts best-effort playback notices to the guild's text channel.
type Announcer interface {
	Announce(guildID, message string)
}

// Manager owns the queue-per-guild map and implements every playback
// command. All mutations run resolve-validate-mutate-broadcast to
// completion under one lock, so concurrent HTTP requests against the same
// queue are serialized and no partial application is observable.
type Manager struct {
	mu sync.Mutex

	voiceChannelID string
	queues         map[string]*Queue

	engine      Engine
	channels    ChannelResolver
	resolver    TrackResolver
	broadcaster Broadcaster
	announcer   Announcer
}

// NewManager wires the command layer to its collaborators. broadcaster and
// announcer may be nil (useful in tests); a nil broadcaster drops snapshots.
func NewManager(voiceChannelID string, engine Engine, channels ChannelResolver, resolver TrackResolver) *Manager {
	return &Manager{
		voiceChannelID: voiceChannelID,
		queues:         make(map[string]*Queue),
		engine:         engine,
		channels:       channels,
		resolver:       resolver,
	}
}

// SetBroadcaster installs the snapshot fan-out target.
func (m *Manager) SetBroadcaster(b Broadcaster) { m.broadcaster = b }

// SetAnnouncer installs the text-channel notice target.
func (m *Manager) SetAnnouncer(a Announcer) { m.announcer = a }

// resolveGuild resolves the configured voice channel to its guild id.
// Every command goes through this single path so "the queue" is always
// unambiguous.
func (m *Manager) resolveGuild() (string, error) {
	if m.voiceChannelID == "" {
		return "", ErrNotConfigured
	}
	guildID, err := m.channels.ResolveVoiceChannel(m.voiceChannelID)
	if err != nil {
		return "", err
	}
	return guildID, nil
}

// resolveQueue is the queue access gateway: configured channel -> guild ->
// active queue. Callers must hold m.mu.
func (m *Manager) resolveQueue() (*Queue, error) {
	guildID, err := m.resolveGuild()
	if err != nil {
		return nil, err
	}
	q, ok := m.queues[guildID]
	if !ok {
		return nil, ErrNoActiveQueue
	}
	return q, nil
}

// Play enqueues the track at url on behalf of user. When no queue exists
// one is created and playback starts immediately; otherwise the track is
// appended to the tail.
func (m *Manager) Play(ctx context.Context, url string, user UserRef) error {
	guildID, err := m.resolveGuild()
	if err != nil {
		return err
	}

	track, err := m.resolver.ResolveTrack(ctx, url)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEngine, err)
	}
	track.AddedBy = &user

	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[guildID]
	if !ok {
		q = NewQueue(guildID, track)
		m.queues[guildID] = q
		if err := m.engine.Start(ctx, guildID, m.voiceChannelID, track); err != nil {
			delete(m.queues, guildID)
			return fmt.Errorf("%w: %v", ErrEngine, err)
		}
		log.Info().Str("guild", guildID).Str("track", track.Title).Msg("queue created, playback started")
	} else {
		q.Append(track)
		m.announce(guildID, fmt.Sprintf("🎶 Added to queue: **%s** - `%s`%s",
			track.Title, FormatDuration(float64(track.DurationSeconds)), addedBySuffix(track)))
		log.Info().Str("guild", guildID).Str("track", track.Title).Int("queue_len", q.Len()).Msg("track appended")
	}

	m.broadcastLocked(guildID, nil)
	return nil
}

// Skip advances to the next track. On the last remaining track it behaves
// as Stop instead of leaving an empty-but-skipped state; the returned bool
// reports whether playback stopped entirely.
func (m *Manager) Skip(ctx context.Context) (stopped bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, err := m.resolveQueue()
	if err != nil {
		return false, err
	}
	if q.Len() == 0 {
		return false, ErrNoNextTrack
	}
	if q.Len() == 1 {
		return true, m.stopLocked(q)
	}

	next := q.Advance()
	if err := m.engine.Start(ctx, q.GuildID, m.voiceChannelID, *next); err != nil {
		return false, fmt.Errorf("%w: %v", ErrEngine, err)
	}
	q.SetPaused(false)
	log.Info().Str("guild", q.GuildID).Str("track", next.Title).Msg("skipped to next track")
	m.broadcastLocked(q.GuildID, nil)
	return false, nil
}

// Stop clears the whole queue and halts playback. An empty-queue snapshot
// is broadcast unconditionally.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, err := m.resolveQueue()
	if err != nil {
		return err
	}
	return m.stopLocked(q)
}

func (m *Manager) stopLocked(q *Queue) error {
	q.Clear()
	delete(m.queues, q.GuildID)
	if err := m.engine.Stop(q.GuildID); err != nil {
		log.Warn().Err(err).Str("guild", q.GuildID).Msg("engine stop failed")
	}
	log.Info().Str("guild", q.GuildID).Msg("playback stopped, queue cleared")
	m.broadcastLocked(q.GuildID, nil)
	return nil
}

// Seek jumps within the current track. The target is clamped into
// [0, duration-1] to avoid racing the natural end-of-track event; the
// clamped value is returned for the caller's acknowledgment.
func (m *Manager) Seek(target float64) (int, error) {
	if math.IsNaN(target) || math.IsInf(target, 0) || target < 0 {
		return 0, ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	q, err := m.resolveQueue()
	if err != nil {
		return 0, err
	}
	cur := q.Current()
	if cur == nil {
		return 0, ErrNoCurrentTrack
	}
	if cur.IsLive || cur.DurationSeconds == 0 {
		return 0, ErrNotSeekable
	}

	clamped := int(target)
	if clamped > cur.DurationSeconds-1 {
		clamped = cur.DurationSeconds - 1
	}
	if err := m.engine.Seek(q.GuildID, clamped); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEngine, err)
	}
	log.Info().Str("guild", q.GuildID).Int("seconds", clamped).Msg("seek")
	m.broadcastLocked(q.GuildID, &SnapshotOverride{CurrentTime: &clamped})
	return clamped, nil
}

// Reorder moves an upcoming track from oldIndex to newIndex (upcoming
// indices; the current track never moves). Same-position reorders succeed
// as a no-op.
func (m *Manager) Reorder(oldIndex, newIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, err := m.resolveQueue()
	if err != nil {
		return err
	}
	if err := q.Reorder(oldIndex, newIndex); err != nil {
		return err
	}
	log.Info().Str("guild", q.GuildID).Int("from", oldIndex).Int("to", newIndex).Msg("queue reordered")
	m.broadcastLocked(q.GuildID, nil)
	return nil
}

// Remove deletes the upcoming track at index and returns its title.
func (m *Manager) Remove(index int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, err := m.resolveQueue()
	if err != nil {
		return "", err
	}
	removed, err := q.Remove(index)
	if err != nil {
		return "", err
	}
	log.Info().Str("guild", q.GuildID).Str("track", removed.Title).Msg("track removed")
	m.broadcastLocked(q.GuildID, nil)
	return removed.Title, nil
}

// SetVolume sets playback volume, 0-200.
func (m *Manager) SetVolume(level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, err := m.resolveQueue()
	if err != nil {
		return err
	}
	if err := q.SetVolume(level); err != nil {
		return err
	}
	if err := m.engine.SetVolume(q.GuildID, level); err != nil {
		return fmt.Errorf("%w: %v", ErrEngine, err)
	}
	log.Info().Str("guild", q.GuildID).Int("volume", level).Msg("volume set")
	m.broadcastLocked(q.GuildID, nil)
	return nil
}

// Pause pauses playback; fails when already paused.
func (m *Manager) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, err := m.resolveQueue()
	if err != nil {
		return err
	}
	if q.Paused() {
		return ErrAlreadyPaused
	}
	if err := m.engine.Pause(q.GuildID); err != nil {
		return fmt.Errorf("%w: %v", ErrEngine, err)
	}
	q.SetPaused(true)
	m.broadcastLocked(q.GuildID, nil)
	return nil
}

// Resume resumes playback; fails when already playing.
func (m *Manager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, err := m.resolveQueue()
	if err != nil {
		return err
	}
	if !q.Paused() {
		return ErrAlreadyPlaying
	}
	if err := m.engine.Resume(q.GuildID); err != nil {
		return fmt.Errorf("%w: %v", ErrEngine, err)
	}
	q.SetPaused(false)
	m.broadcastLocked(q.GuildID, nil)
	return nil
}

// Snapshot builds the current queue projection. A missing or unresolvable
// queue yields an empty snapshot, never an error.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, err := m.resolveQueue()
	if err != nil {
		return Snapshot{Queue: []TrackView{}}
	}
	return m.snapshotLocked(q, nil)
}

// SnapshotOverride reflects an optimistic value in a broadcast before the
// engine's own clock confirms it.
type SnapshotOverride struct {
	CurrentTime *int
}

func (m *Manager) snapshotLocked(q *Queue, ov *SnapshotOverride) Snapshot {
	snap := Snapshot{Queue: []TrackView{}}
	cur := q.Current()
	if cur != nil {
		now := NowPlayingView{
			TrackView:   cur.View(),
			Paused:      q.Paused(),
			CurrentTime: m.engine.Position(q.GuildID),
		}
		if ov != nil && ov.CurrentTime != nil {
			now.CurrentTime = *ov.CurrentTime
		}
		snap.Current = &now
	}
	for _, t := range q.Upcoming() {
		snap.Queue = append(snap.Queue, t.View())
	}
	return snap
}

// broadcastLocked pushes the guild's snapshot to every connected viewer.
// Called after every mutation; callers must hold m.mu.
func (m *Manager) broadcastLocked(guildID string, ov *SnapshotOverride) {
	if m.broadcaster == nil {
		return
	}
	q, ok := m.queues[guildID]
	if !ok {
		m.broadcaster.QueueUpdated(guildID, Snapshot{Queue: []TrackView{}})
		return
	}
	m.broadcaster.QueueUpdated(guildID, m.snapshotLocked(q, ov))
}

func (m *Manager) announce(guildID, message string) {
	if m.announcer == nil {
		return
	}
	m.announcer.Announce(guildID, message)
}

// Run consumes engine events until ctx is done. Track start, track end and
// engine errors arrive here, decoupled from the HTTP request path.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-m.engine.Events():
			if !ok {
				return
			}
			m.handleEngineEvent(ctx, evt)
		}
	}
}

func (m *Manager) handleEngineEvent(ctx context.Context, evt EngineEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[evt.GuildID]
	if !ok {
		return
	}

	switch evt.Type {
	case TrackStarted:
		if cur := q.Current(); cur != nil {
			m.announce(evt.GuildID, fmt.Sprintf("▶️ Now playing: **%s** - `%s`%s",
				cur.Title, FormatDuration(float64(cur.DurationSeconds)), addedBySuffix(*cur)))
		}
		m.broadcastLocked(evt.GuildID, nil)

	case TrackFinished:
		m.advanceLocked(ctx, q)

	case TrackFailed:
		msg := "unknown error"
		if evt.Err != nil {
			msg = evt.Err.Error()
		}
		if len(msg) > 1900 {
			msg = msg[:1900]
		}
		log.Error().Str("guild", evt.GuildID).Str("reason", msg).Msg("engine reported track failure")
		m.announce(evt.GuildID, fmt.Sprintf("❌ Playback error: %s", msg))
		m.advanceLocked(ctx, q)
	}
}

// advanceLocked drops the finished track and starts the next one, or winds
// the queue down when nothing is left.
func (m *Manager) advanceLocked(ctx context.Context, q *Queue) {
	next := q.Advance()
	if next == nil {
		delete(m.queues, q.GuildID)
		if err := m.engine.Stop(q.GuildID); err != nil {
			log.Warn().Err(err).Str("guild", q.GuildID).Msg("engine stop failed")
		}
		m.announce(q.GuildID, "✅ Queue finished!")
		m.broadcastLocked(q.GuildID, nil)
		return
	}
	if err := m.engine.Start(ctx, q.GuildID, m.voiceChannelID, *next); err != nil {
		log.Error().Err(err).Str("guild", q.GuildID).Str("track", next.Title).Msg("failed to start next track")
	}
	q.SetPaused(false)
	m.broadcastLocked(q.GuildID, nil)
}

func addedBySuffix(t Track) string {
	if t.AddedBy == nil {
		return ""
	}
	return fmt.Sprintf(" (added by: %s)", t.AddedBy.Name)
}
