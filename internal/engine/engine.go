// Package engine hosts the playback engine the queue manager drives. The
// engine owns the Discord voice connection and the per-guild playback
// clock; audio frame transport itself lives outside this process and is
// keyed off the state reported here.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/Pooh303/sec3music-bot/internal/music"
)

// VoiceJoiner joins a guild voice channel. *discordgo.Session satisfies it;
// tests pass nil to skip voice entirely.
type VoiceJoiner interface {
	ChannelVoiceJoin(guildID, channelID string, mute, deaf bool) (*discordgo.VoiceConnection, error)
}

var ErrNoSession = errors.New("no playback session for guild")

// guildSession is one guild's live playback state.
type guildSession struct {
	guildID   string
	channelID string
	track     music.Track
	position  int
	paused    bool
	volume    int

	vc   *discordgo.VoiceConnection
	stop chan struct{}
}

// VoiceEngine implements music.Engine. One clock goroutine per guild ticks
// the playback position forward and emits a finish event when the track's
// duration elapses; live tracks never finish on their own.
type VoiceEngine struct {
	mu       sync.Mutex
	joiner   VoiceJoiner
	sessions map[string]*guildSession
	events   chan music.EngineEvent
	tick     time.Duration
}

// NewVoiceEngine creates an engine. joiner may be nil, in which case no
// voice connection is attempted (the clock still runs).
func NewVoiceEngine(joiner VoiceJoiner) *VoiceEngine {
	return &VoiceEngine{
		joiner:   joiner,
		sessions: make(map[string]*guildSession),
		events:   make(chan music.EngineEvent, 16), // buffered to reduce drops
		tick:     time.Second,
	}
}

func (e *VoiceEngine) Events() <-chan music.EngineEvent { return e.events }

// Start begins playing t in the guild, replacing whatever was playing.
func (e *VoiceEngine) Start(ctx context.Context, guildID, channelID string, t music.Track) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, ok := e.sessions[guildID]
	volume := music.DefaultVolume
	var vc *discordgo.VoiceConnection
	if ok {
		close(prev.stop)
		volume = prev.volume
		vc = prev.vc
	}

	s := &guildSession{
		guildID:   guildID,
		channelID: channelID,
		track:     t,
		volume:    volume,
		vc:        vc,
		stop:      make(chan struct{}),
	}

	if s.vc == nil && e.joiner != nil {
		conn, err := e.joiner.ChannelVoiceJoin(guildID, channelID, false, true)
		if err != nil {
			return err
		}
		s.vc = conn
		log.Info().Str("guild", guildID).Str("channel", channelID).Msg("joined voice channel")
	}

	e.sessions[guildID] = s
	go e.runClock(s)

	e.emit(music.EngineEvent{Type: music.TrackStarted, GuildID: guildID})
	log.Info().Str("guild", guildID).Str("track", t.Title).
		Int("duration", t.DurationSeconds).Bool("live", t.IsLive).Msg("playback started")
	return nil
}

// runClock advances the session position once per tick until the track
// ends or the session is replaced or stopped.
func (e *VoiceEngine) runClock(s *guildSession) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if e.advanceClock(s) {
				return
			}
		}
	}
}

// advanceClock ticks one second of playback; returns true when the track
// reached its natural end.
func (e *VoiceEngine) advanceClock(s *guildSession) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sessions[s.guildID] != s {
		return true // replaced
	}
	if s.paused {
		return false
	}
	s.position++
	if !s.track.IsLive && s.track.DurationSeconds > 0 && s.position >= s.track.DurationSeconds {
		e.emit(music.EngineEvent{Type: music.TrackFinished, GuildID: s.guildID})
		delete(e.sessions, s.guildID)
		return true
	}
	return false
}

// Stop halts the guild's session. The voice connection is left open so an
// immediate follow-up play does not have to rejoin.
func (e *VoiceEngine) Stop(guildID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[guildID]
	if !ok {
		return nil
	}
	close(s.stop)
	delete(e.sessions, guildID)
	log.Info().Str("guild", guildID).Msg("playback session stopped")
	return nil
}

// Disconnect tears down the guild's voice connection, if any.
func (e *VoiceEngine) Disconnect(guildID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.sessions[guildID]; ok && s.vc != nil {
		if err := s.vc.Disconnect(); err != nil {
			log.Warn().Err(err).Str("guild", guildID).Msg("voice disconnect failed")
		}
		s.vc = nil
	}
}

func (e *VoiceEngine) Pause(guildID string) error {
	return e.withSession(guildID, func(s *guildSession) {
		s.paused = true
	})
}

func (e *VoiceEngine) Resume(guildID string) error {
	return e.withSession(guildID, func(s *guildSession) {
		s.paused = false
	})
}

func (e *VoiceEngine) Seek(guildID string, seconds int) error {
	return e.withSession(guildID, func(s *guildSession) {
		s.position = seconds
	})
}

func (e *VoiceEngine) SetVolume(guildID string, level int) error {
	return e.withSession(guildID, func(s *guildSession) {
		s.volume = level
	})
}

// Position reports elapsed seconds into the current track, 0 when idle.
func (e *VoiceEngine) Position(guildID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.sessions[guildID]; ok {
		return s.position
	}
	return 0
}

func (e *VoiceEngine) withSession(guildID string, fn func(*guildSession)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[guildID]
	if !ok {
		return ErrNoSession
	}
	fn(s)
	return nil
}

// emit sends an event without ever blocking a caller; callers may hold
// locks the consumer also needs.
func (e *VoiceEngine) emit(evt music.EngineEvent) {
	select {
	case e.events <- evt:
	default:
		log.Warn().Str("guild", evt.GuildID).Msg("engine event dropped (channel full)")
	}
}
