package upload

import (
	"context"
	"errors"
	"testing"
	"time"

	"flacshare/core/audio"
	"flacshare/model"
	"flacshare/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRejectsEditsOutsideEditing(t *testing.T) {
	s := NewSession(7)

	assert.True(t, errors.Is(s.UpdateField(FieldTitle, "x"), ErrInvalidState))
	assert.True(t, errors.Is(s.SetCover(coverFile()), ErrInvalidState))

	_, err := s.beginCommit()
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, StateIdle, s.State())
}

func TestSessionUpdateField(t *testing.T) {
	h := newHarness()
	s := editingSession(t, h, false)

	require.NoError(t, s.UpdateField("Title", "New Title"))
	require.NoError(t, s.UpdateField(FieldLyrics, "line one\nline two"))
	assert.True(t, errors.Is(s.UpdateField("genre", "rock"), ErrUnknownField))

	fields := s.Fields()
	assert.Equal(t, "New Title", fields.Title)
	assert.Equal(t, "Artist", fields.Artist)
	assert.Equal(t, "Single", fields.Album)
	assert.Equal(t, "line one\nline two", fields.Lyrics)
}

func TestSessionSetCover(t *testing.T) {
	h := newHarness()
	s := editingSession(t, h, false)

	err := s.SetCover(&model.FileHandle{Name: "cover.txt", ContentType: "text/plain"})
	assert.True(t, errors.Is(err, ErrUnsupportedCover))
	assert.Empty(t, s.Snapshot().CoverName)

	require.NoError(t, s.SetCover(coverFile()))
	assert.Equal(t, "front.jpg", s.Snapshot().CoverName)

	require.NoError(t, s.SetCover(nil))
	assert.Empty(t, s.Snapshot().CoverName)
}

func TestSessionRejectsSecondFileWhileEditing(t *testing.T) {
	h := newHarness()
	s := editingSession(t, h, false)

	err := h.coordinator.SelectFile(context.Background(), s, audioFile("Other - Song.mp3"))
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, "Artist - Title.flac", s.Snapshot().FileName)
}

func TestSessionResetClearsEverything(t *testing.T) {
	h := newHarness()
	s := editingSession(t, h, true)
	require.NoError(t, s.UpdateField(FieldLyrics, "words"))

	s.Reset()

	snap := s.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.FileName)
	assert.Empty(t, snap.CoverName)
	assert.Nil(t, snap.Stats)
	assert.Equal(t, model.TrackFields{}, snap.Fields)

	// Idle again, so a new file can be selected
	require.NoError(t, h.coordinator.SelectFile(context.Background(), s, audioFile("A - B.wav")))
	assert.Equal(t, "B", s.Fields().Title)
}

func TestSessionResetDiscardsInFlightAnalysis(t *testing.T) {
	s := NewSession(7)
	gen, err := s.beginAnalysis(audioFile("A - B.flac"))
	require.NoError(t, err)
	assert.Equal(t, StateAnalyzing, s.State())

	s.Reset()

	err = s.finishAnalysis(gen, &audio.Analysis{Stats: model.AudioStats{DurationSeconds: 1, SampleRateHz: 8000, ChannelCount: 1}})
	assert.True(t, errors.Is(err, ErrSessionReset))
	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.Snapshot().Stats)
}

func TestSessionRejectsInvalidUploader(t *testing.T) {
	h := newHarness()
	s, err := h.coordinator.StartSession(context.Background(), 0, audioFile("A - B.flac"))
	require.NoError(t, err)

	_, err = h.coordinator.Commit(context.Background(), s)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, []string{"uploaderId"}, validationErr.Fields)
	assert.Empty(t, h.log.all())
}

func TestStateMarshalText(t *testing.T) {
	b, err := StateCommitting.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "committing", string(b))
	assert.Equal(t, "state(42)", State(42).String())
}

func TestKeyClockIsStrictlyIncreasing(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base, base.Add(-time.Second), base.Add(time.Millisecond * 5)}
	i := 0
	clock := newKeyClock(func() time.Time {
		tick := ticks[i]
		i++
		return tick
	})

	want := []int64{base.UnixMilli(), base.UnixMilli() + 1, base.UnixMilli() + 2, base.UnixMilli() + 5}
	for _, w := range want {
		assert.Equal(t, w, clock.next())
	}
}

func TestStorageKey(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"plain", "song.flac", "42/1700000000000_song.flac"},
		{"keeps spaces", "Artist - Title.flac", "42/1700000000000_Artist - Title.flac"},
		{"strips unix dirs", "music/album/song.mp3", "42/1700000000000_song.mp3"},
		{"strips windows dirs", `C:\Users\me\song.wav`, "42/1700000000000_song.wav"},
		{"empty", "  ", "42/1700000000000_upload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StorageKey(42, 1700000000000, tt.filename))
		})
	}
}

func TestCommitPlanRollbackOrder(t *testing.T) {
	var order []string
	plan := &commitPlan{}
	for _, r := range []Resource{{Kind: KindAudio, Key: "a"}, {Kind: KindCover, Key: "c"}} {
		r := r
		plan.push(r, func(context.Context) error {
			order = append(order, r.Key)
			if r.Kind == KindCover {
				return errStore
			}
			return nil
		})
	}
	assert.Equal(t, []Resource{{Kind: KindAudio, Key: "a"}, {Kind: KindCover, Key: "c"}}, plan.Resources())

	warnings := plan.rollback(context.Background())

	assert.Equal(t, []string{"c", "a"}, order)
	require.Len(t, warnings, 1)
	assert.Equal(t, "c", warnings[0].Key)
	assert.Equal(t, storage.NamespaceCover, warnings[0].Namespace())
	assert.True(t, errors.Is(warnings[0], errStore))
	assert.Empty(t, plan.Resources())

	// a second rollback is a no-op
	assert.Empty(t, plan.rollback(context.Background()))
}
