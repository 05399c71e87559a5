package music

import (
	"fmt"
	"math"
)

// UserRef identifies the Discord user a track or session is attributed to.
// Attribution metadata only; never used for authorization.
type UserRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Track is the stable wire-visible shape of a queued song. Engine-internal
// objects are never exposed directly; everything is mapped onto this set of
// fields before it leaves the process.
type Track struct {
	ID              string
	Title           string
	DurationSeconds int
	URL             string
	Thumbnail       string
	IsLive          bool
	AddedBy         *UserRef
}

// Metadata carries track attribution on the wire, mirroring the shape the
// web client reads from `song.metadata.addedBy`.
type Metadata struct {
	AddedBy *UserRef `json:"addedBy,omitempty"`
}

// TrackView is the projection of a Track sent to viewers.
type TrackView struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Duration          int      `json:"duration"`
	FormattedDuration string   `json:"formattedDuration"`
	URL               string   `json:"url"`
	Thumbnail         string   `json:"thumbnail"`
	Metadata          Metadata `json:"metadata"`
	IsLive            bool     `json:"isLive"`
}

// NowPlayingView is the current track plus live playback state.
type NowPlayingView struct {
	TrackView
	Paused      bool `json:"paused"`
	CurrentTime int  `json:"currentTime"`
}

// Snapshot is the canonical queue projection pushed to every viewer:
// the current track (nil when idle) and the upcoming sub-sequence.
type Snapshot struct {
	Current *NowPlayingView `json:"current"`
	Queue   []TrackView     `json:"queue"`
}

// View maps a Track to its wire projection.
func (t Track) View() TrackView {
	return TrackView{
		ID:                t.ID,
		Name:              t.Title,
		Duration:          t.DurationSeconds,
		FormattedDuration: FormatDuration(float64(t.DurationSeconds)),
		URL:               t.URL,
		Thumbnail:         t.Thumbnail,
		Metadata:          Metadata{AddedBy: t.AddedBy},
		IsLive:            t.IsLive,
	}
}

// FormatDuration renders a duration in seconds as M:SS with zero-padded
// seconds. Negative, NaN or infinite input renders as "0:00".
func FormatDuration(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00"
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
