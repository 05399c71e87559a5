package music

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine records calls and lets tests inject events.
type fakeEngine struct {
	events   chan EngineEvent
	started  []Track
	stopped  int
	paused   int
	resumed  int
	seeked   []int
	volume   int
	position int
	startErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: make(chan EngineEvent, 16)}
}

func (e *fakeEngine) Start(_ context.Context, guildID, _ string, t Track) error {
	if e.startErr != nil {
		return e.startErr
	}
	e.started = append(e.started, t)
	e.position = 0
	return nil
}
func (e *fakeEngine) Stop(string) error { e.stopped++; return nil }

func (e *fakeEngine) Pause(string) error { e.paused++; return nil }

func (e *fakeEngine) Resume(string) error { e.resumed++; return nil }

func (e *fakeEngine) Seek(_ string, s int) error { e.seeked = append(e.seeked, s); return nil }

func (e *fakeEngine) Position(string) int { return e.position }

func (e *fakeEngine) SetVolume(_ string, l int) error { e.volume = l; return nil }

func (e *fakeEngine) Events() <-chan EngineEvent { return e.events }

type fakeChannels struct {
	guildID string
	err     error
}

func (c *fakeChannels) ResolveVoiceChannel(string) (string, error) {
	return c.guildID, c.err
}

type fakeResolver struct {
	tracks map[string]Track
}

func (r *fakeResolver) ResolveTrack(_ context.Context, url string) (Track, error) {
	t, ok := r.tracks[url]
	if !ok {
		return Track{}, errors.New("video not found")
	}
	return t, nil
}

type fakeBroadcaster struct {
	snapshots []Snapshot
}

func (b *fakeBroadcaster) QueueUpdated(_ string, snap Snapshot) {
	b.snapshots = append(b.snapshots, snap)
}

func (b *fakeBroadcaster) last() Snapshot {
	return b.snapshots[len(b.snapshots)-1]
}

func newTestManager(t *testing.T) (*Manager, *fakeEngine, *fakeBroadcaster) {
	t.Helper()
	eng := newFakeEngine()
	bc := &fakeBroadcaster{}
	m := NewManager("vc1", eng, &fakeChannels{guildID: "g1"}, &fakeResolver{tracks: map[string]Track{
		"urlA": {ID: "A", Title: "Song A", DurationSeconds: 180},
		"urlB": {ID: "B", Title: "Song B", DurationSeconds: 240},
		"urlC": {ID: "C", Title: "Song C", DurationSeconds: 60},
		"live": {ID: "L", Title: "Live Stream", IsLive: true},
	}})
	m.SetBroadcaster(bc)
	return m, eng, bc
}

func playAll(t *testing.T, m *Manager, urls ...string) {
	t.Helper()
	for _, url := range urls {
		require.NoError(t, m.Play(context.Background(), url, UserRef{ID: "u1", Name: "alice"}))
	}
}

func TestPlayCreatesQueueAndStartsPlayback(t *testing.T) {
	m, eng, bc := newTestManager(t)

	playAll(t, m, "urlA")

	require.Len(t, eng.started, 1)
	assert.Equal(t, "Song A", eng.started[0].Title)

	snap := m.Snapshot()
	require.NotNil(t, snap.Current)
	assert.Equal(t, "Song A", snap.Current.Name)
	assert.Empty(t, snap.Queue)
	assert.Equal(t, "alice", snap.Current.Metadata.AddedBy.Name)

	require.Len(t, bc.snapshots, 1)
}

func TestPlayAppendsToExistingQueue(t *testing.T) {
	m, eng, _ := newTestManager(t)

	playAll(t, m, "urlA", "urlB")

	// Only the first track starts the engine; the second is queued.
	require.Len(t, eng.started, 1)

	snap := m.Snapshot()
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, "Song B", snap.Queue[0].Name)
}

func TestPlayUnresolvableTrack(t *testing.T) {
	m, _, bc := newTestManager(t)

	err := m.Play(context.Background(), "nope", UserRef{})
	assert.ErrorIs(t, err, ErrEngine)
	assert.Empty(t, bc.snapshots, "failed command must not broadcast")
}

func TestPlayNotConfigured(t *testing.T) {
	eng := newFakeEngine()
	m := NewManager("", eng, &fakeChannels{guildID: "g1"}, &fakeResolver{})

	err := m.Play(context.Background(), "urlA", UserRef{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPlayChannelNotFound(t *testing.T) {
	eng := newFakeEngine()
	m := NewManager("vc1", eng, &fakeChannels{err: ErrChannelNotFound}, &fakeResolver{})

	err := m.Play(context.Background(), "urlA", UserRef{})
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestSkipAdvances(t *testing.T) {
	m, eng, _ := newTestManager(t)
	playAll(t, m, "urlA", "urlB")

	stopped, err := m.Skip(context.Background())
	require.NoError(t, err)
	assert.False(t, stopped)
	assert.Equal(t, "Song B", eng.started[len(eng.started)-1].Title)

	snap := m.Snapshot()
	assert.Equal(t, "Song B", snap.Current.Name)
	assert.Empty(t, snap.Queue)
}

func TestSkipLastTrackStops(t *testing.T) {
	m, eng, bc := newTestManager(t)
	playAll(t, m, "urlA")

	stopped, err := m.Skip(context.Background())
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.Equal(t, 1, eng.stopped)

	// The broadcast after stop is the empty snapshot.
	assert.Nil(t, bc.last().Current)
	assert.Empty(t, bc.last().Queue)
}

func TestSkipWithoutQueue(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Skip(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveQueue)
}

func TestStopClearsEverything(t *testing.T) {
	m, eng, bc := newTestManager(t)
	playAll(t, m, "urlA", "urlB", "urlC")

	require.NoError(t, m.Stop())
	assert.Equal(t, 1, eng.stopped)
	assert.Nil(t, bc.last().Current)

	// The queue is gone; a follow-up stop has nothing to act on.
	assert.ErrorIs(t, m.Stop(), ErrNoActiveQueue)
}

func TestSeekClampsIntoRange(t *testing.T) {
	m, eng, _ := newTestManager(t)
	playAll(t, m, "urlA") // 180s

	clamped, err := m.Seek(9999)
	require.NoError(t, err)
	assert.Equal(t, 179, clamped, "clamps to duration-1")

	clamped, err = m.Seek(42)
	require.NoError(t, err)
	assert.Equal(t, 42, clamped)
	assert.Equal(t, []int{179, 42}, eng.seeked)
}

func TestSeekInvalidInput(t *testing.T) {
	m, _, _ := newTestManager(t)
	playAll(t, m, "urlA")

	_, err := m.Seek(-1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSeekLiveTrack(t *testing.T) {
	m, _, _ := newTestManager(t)
	playAll(t, m, "live")

	_, err := m.Seek(10)
	assert.ErrorIs(t, err, ErrNotSeekable)
}

func TestSeekBroadcastsOptimisticTime(t *testing.T) {
	m, _, bc := newTestManager(t)
	playAll(t, m, "urlA")

	_, err := m.Seek(42)
	require.NoError(t, err)
	require.NotNil(t, bc.last().Current)
	assert.Equal(t, 42, bc.last().Current.CurrentTime)
}

func TestPauseResumeIdempotencyGuards(t *testing.T) {
	m, _, _ := newTestManager(t)
	playAll(t, m, "urlA")

	assert.ErrorIs(t, m.Resume(), ErrAlreadyPlaying)
	require.NoError(t, m.Pause())
	assert.ErrorIs(t, m.Pause(), ErrAlreadyPaused)
	require.NoError(t, m.Resume())
}

func TestVolumeOutOfRange(t *testing.T) {
	m, eng, _ := newTestManager(t)
	playAll(t, m, "urlA")

	assert.ErrorIs(t, m.SetVolume(201), ErrInvalidInput)
	require.NoError(t, m.SetVolume(150))
	assert.Equal(t, 150, eng.volume)
}

func TestEveryMutationBroadcastsExactlyOnce(t *testing.T) {
	m, _, bc := newTestManager(t)

	playAll(t, m, "urlA", "urlB", "urlC")
	require.NoError(t, m.Reorder(0, 1))
	_, err := m.Remove(0)
	require.NoError(t, err)
	_, err = m.Seek(5)
	require.NoError(t, err)
	require.NoError(t, m.Pause())
	require.NoError(t, m.Resume())
	require.NoError(t, m.SetVolume(80))
	require.NoError(t, m.Stop())

	// 3 plays + reorder + remove + seek + pause + resume + volume + stop.
	assert.Len(t, bc.snapshots, 10)
}

func TestFailedMutationDoesNotBroadcast(t *testing.T) {
	m, _, bc := newTestManager(t)
	playAll(t, m, "urlA")
	before := len(bc.snapshots)

	assert.Error(t, m.Reorder(5, 0))
	_, err := m.Remove(5)
	assert.Error(t, err)
	assert.Error(t, m.SetVolume(999))

	assert.Len(t, bc.snapshots, before)
}

func TestEngineTrackFinishedAdvancesQueue(t *testing.T) {
	m, eng, bc := newTestManager(t)
	playAll(t, m, "urlA", "urlB")

	m.handleEngineEvent(context.Background(), EngineEvent{Type: TrackFinished, GuildID: "g1"})

	snap := m.Snapshot()
	require.NotNil(t, snap.Current)
	assert.Equal(t, "Song B", snap.Current.Name)
	assert.Equal(t, "Song B", eng.started[len(eng.started)-1].Title)
	assert.NotEmpty(t, bc.snapshots)
}

func TestEngineQueueExhausted(t *testing.T) {
	m, eng, bc := newTestManager(t)
	playAll(t, m, "urlA")

	m.handleEngineEvent(context.Background(), EngineEvent{Type: TrackFinished, GuildID: "g1"})

	assert.Nil(t, bc.last().Current)
	assert.Equal(t, 1, eng.stopped)
	assert.Nil(t, m.Snapshot().Current)
}

func TestEngineTrackFailedSkipsToNext(t *testing.T) {
	m, _, _ := newTestManager(t)
	playAll(t, m, "urlA", "urlB")

	m.handleEngineEvent(context.Background(), EngineEvent{
		Type: TrackFailed, GuildID: "g1", Err: errors.New("stream died"),
	})

	snap := m.Snapshot()
	require.NotNil(t, snap.Current)
	assert.Equal(t, "Song B", snap.Current.Name)
}

func TestSnapshotWithoutQueueIsEmptyNotError(t *testing.T) {
	m, _, _ := newTestManager(t)

	snap := m.Snapshot()
	assert.Nil(t, snap.Current)
	assert.NotNil(t, snap.Queue)
	assert.Empty(t, snap.Queue)
}
