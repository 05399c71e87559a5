package music

import "slices"

// Queue is the ordered track list for one guild. Slot 0 is the track being
// played; slots 1..n are the upcoming sub-sequence. A Queue is plain data
// and is only ever touched under the Manager's lock.
type Queue struct {
	GuildID string

	tracks []Track
	volume int
	paused bool
}

const (
	MinVolume     = 0
	MaxVolume     = 200
	DefaultVolume = 100
)

// NewQueue creates a queue for a guild with its first track as current.
func NewQueue(guildID string, first Track) *Queue {
	return &Queue{
		GuildID: guildID,
		tracks:  []Track{first},
		volume:  DefaultVolume,
	}
}

// upcomingToFull translates an index over the upcoming sub-sequence
// (0 = first track after the one playing) into an index over the full
// track list, where slot 0 is the current track. Every reorder/remove
// goes through this one translation; nothing else does index arithmetic.
func upcomingToFull(upcomingIndex int) int {
	return upcomingIndex + 1
}

func (q *Queue) Len() int { return len(q.tracks) }

// Current returns the track in slot 0, or nil for an empty queue.
func (q *Queue) Current() *Track {
	if len(q.tracks) == 0 {
		return nil
	}
	return &q.tracks[0]
}

// Upcoming returns a copy of the upcoming sub-sequence.
func (q *Queue) Upcoming() []Track {
	if len(q.tracks) <= 1 {
		return nil
	}
	return slices.Clone(q.tracks[1:])
}

// Append adds a track to the tail of the queue.
func (q *Queue) Append(t Track) {
	q.tracks = append(q.tracks, t)
}

// Advance drops the current track and promotes the next one, returning the
// new current track or nil when the queue ran out.
func (q *Queue) Advance() *Track {
	if len(q.tracks) == 0 {
		return nil
	}
	q.tracks = q.tracks[1:]
	return q.Current()
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.tracks = nil
}

// Reorder moves the upcoming track at oldIndex to newIndex. Both indices
// address the upcoming sub-sequence only; the current track never moves.
// This is a remove-then-insert, so tracks in between shift by one.
// newIndex may equal the upcoming length, which appends at the tail.
func (q *Queue) Reorder(oldIndex, newIndex int) error {
	if oldIndex < 0 || newIndex < 0 {
		return ErrInvalidInput
	}

	fullOld := upcomingToFull(oldIndex)
	fullNew := upcomingToFull(newIndex)
	if fullOld >= len(q.tracks) || fullNew > len(q.tracks) {
		return ErrOutOfBounds
	}
	if oldIndex == newIndex {
		return nil
	}

	moved := q.tracks[fullOld]
	q.tracks = append(q.tracks[:fullOld], q.tracks[fullOld+1:]...)
	if fullNew > len(q.tracks) {
		fullNew = len(q.tracks)
	}
	q.tracks = slices.Insert(q.tracks, fullNew, moved)
	return nil
}

// Remove deletes the upcoming track at index and returns it. The current
// track cannot be removed this way.
func (q *Queue) Remove(index int) (Track, error) {
	if index < 0 {
		return Track{}, ErrInvalidInput
	}
	full := upcomingToFull(index)
	if full >= len(q.tracks) {
		return Track{}, ErrOutOfBounds
	}
	removed := q.tracks[full]
	q.tracks = append(q.tracks[:full], q.tracks[full+1:]...)
	return removed, nil
}

func (q *Queue) Volume() int { return q.volume }

func (q *Queue) SetVolume(level int) error {
	if level < MinVolume || level > MaxVolume {
		return ErrInvalidInput
	}
	q.volume = level
	return nil
}

func (q *Queue) Paused() bool { return q.paused }

func (q *Queue) SetPaused(paused bool) { q.paused = paused }
