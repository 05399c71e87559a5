package music

import "errors"

var (
	// Deployment error: no voice channel id configured for this process.
	ErrNotConfigured = errors.New("voice channel id is not configured")

	// The configured voice channel could not be resolved on the platform.
	ErrChannelNotFound = errors.New("configured voice channel not found or is not a voice channel")

	// The bot lacks permission to join the configured voice channel.
	ErrChannelNotJoinable = errors.New("configured voice channel is not joinable")

	// The channel's guild has no playback session right now.
	ErrNoActiveQueue = errors.New("no active queue in this guild")

	// Caller errors.
	ErrInvalidInput = errors.New("invalid input")
	ErrOutOfBounds  = errors.New("index out of bounds")

	// Idempotency guards for pause/resume.
	ErrAlreadyPaused  = errors.New("playback is already paused")
	ErrAlreadyPlaying = errors.New("playback is already running")

	ErrNoCurrentTrack = errors.New("no track is currently playing")
	ErrNoNextTrack    = errors.New("queue is empty, nothing to skip")
	ErrNotSeekable    = errors.New("cannot seek a live stream or a track with zero duration")

	// ErrEngine wraps failures reported by the external playback engine.
	ErrEngine = errors.New("playback engine failure")
)

// IsAlreadyInState reports whether err is one of the pause/resume
// idempotency guards.
func IsAlreadyInState(err error) bool {
	return errors.Is(err, ErrAlreadyPaused) || errors.Is(err, ErrAlreadyPlaying)
}
