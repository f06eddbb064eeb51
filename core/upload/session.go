package upload

import (
	"fmt"
	"strings"
	"sync"

	"flacshare/core/audio"
	"flacshare/model"
)

// State is the lifecycle state of an upload session.
type State int

const (
	StateIdle State = iota
	StateAnalyzing
	StateEditing
	StateCommitting
	StateCompleted
	// StateFailed is reserved for a session whose source was discarded after an
	// unrecoverable error. Analysis failures clean up straight to Idle.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAnalyzing:
		return "analyzing"
	case StateEditing:
		return "editing"
	case StateCommitting:
		return "committing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON snapshots.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Field names accepted by UpdateField.
const (
	FieldTitle  = "title"
	FieldArtist = "artist"
	FieldAlbum  = "album"
	FieldLyrics = "lyrics"
)

// Session 保存一次上传的全部中间状态，文件句柄由 session 独占。
// 方法可被并发调用，但同一时刻最多只有一次提交在进行。
type Session struct {
	mu sync.Mutex

	uploaderID int64
	state      State
	source     *model.FileHandle
	cover      *model.FileHandle
	stats      *model.AudioStats
	fields     model.TrackFields
	record     *model.CatalogRecord

	// generation 在 Reset 时递增，用来丢弃 Reset 之前发起的分析或提交结果
	generation uint64
}

// Snapshot is a copy of the session's observable state.
type Snapshot struct {
	State     State                `json:"state"`
	FileName  string               `json:"fileName,omitempty"`
	CoverName string               `json:"coverName,omitempty"`
	Stats     *model.AudioStats    `json:"stats,omitempty"`
	Fields    model.TrackFields    `json:"fields"`
	Record    *model.CatalogRecord `json:"record,omitempty"`
}

// commitInput is everything a commit needs, copied out under the lock.
type commitInput struct {
	generation uint64
	uploaderID int64
	source     *model.FileHandle
	cover      *model.FileHandle
	stats      model.AudioStats
	fields     model.TrackFields
}

// NewSession creates an Idle session owned by uploaderID.
func NewSession(uploaderID int64) *Session {
	return &Session{uploaderID: uploaderID}
}

// UploaderID returns the owner of the session.
func (s *Session) UploaderID() int64 {
	return s.uploaderID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Fields returns a copy of the editable fields.
func (s *Session) Fields() model.TrackFields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields
}

// Snapshot returns a copy of the session's observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{State: s.state, Fields: s.fields, Record: s.record}
	if s.source != nil {
		snap.FileName = s.source.Name
	}
	if s.cover != nil {
		snap.CoverName = s.cover.Name
	}
	if s.stats != nil {
		stats := *s.stats
		snap.Stats = &stats
	}
	return snap
}

// beginAnalysis: Idle --selectFile--> Analyzing.
func (s *Session) beginAnalysis(file *model.FileHandle) (uint64, error) {
	if file == nil || !audio.AcceptsAudio(file.Name, file.ContentType) {
		return 0, ErrUnsupportedFile
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return 0, fmt.Errorf("select file in %s state: %w", s.state, ErrInvalidState)
	}
	s.state = StateAnalyzing
	s.source = file
	return s.generation, nil
}

// finishAnalysis: Analyzing --analysisSucceeds--> Editing.
func (s *Session) finishAnalysis(gen uint64, result *audio.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.state != StateAnalyzing {
		return ErrSessionReset
	}
	stats := result.Stats
	s.stats = &stats
	s.fields = result.Fields
	s.state = StateEditing
	return nil
}

// failAnalysis: Analyzing --analysisFails--> Idle, discarding the source.
func (s *Session) failAnalysis(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.state != StateAnalyzing {
		return
	}
	s.clearLocked()
}

// UpdateField edits one of title, artist, album or lyrics. Only allowed while Editing.
func (s *Session) UpdateField(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEditing {
		return fmt.Errorf("update field in %s state: %w", s.state, ErrInvalidState)
	}

	switch strings.ToLower(name) {
	case FieldTitle:
		s.fields.Title = value
	case FieldArtist:
		s.fields.Artist = value
	case FieldAlbum:
		s.fields.Album = value
	case FieldLyrics:
		s.fields.Lyrics = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}

// SetCover attaches cover art; nil removes it. Only allowed while Editing.
func (s *Session) SetCover(file *model.FileHandle) error {
	if file != nil && !audio.AcceptsCover(file.ContentType) {
		return ErrUnsupportedCover
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEditing {
		return fmt.Errorf("set cover in %s state: %w", s.state, ErrInvalidState)
	}
	s.cover = file
	return nil
}

// beginCommit: Editing --submit--> Committing. Missing title or artist is
// rejected with a ValidationError and the session stays Editing.
func (s *Session) beginCommit() (*commitInput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEditing {
		return nil, fmt.Errorf("submit in %s state: %w", s.state, ErrInvalidState)
	}
	if err := validateFields(s.uploaderID, s.fields); err != nil {
		return nil, err
	}

	s.state = StateCommitting
	return &commitInput{
		generation: s.generation,
		uploaderID: s.uploaderID,
		source:     s.source,
		cover:      s.cover,
		stats:      *s.stats,
		fields:     s.fields,
	}, nil
}

// completeCommit: Committing --commitSucceeds--> Completed.
func (s *Session) completeCommit(gen uint64, record *model.CatalogRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.state != StateCommitting {
		return
	}
	s.record = record
	s.state = StateCompleted
}

// failCommit: Committing --commitFails--> Editing. Fields and stats are left untouched.
func (s *Session) failCommit(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.state != StateCommitting {
		return
	}
	s.state = StateEditing
}

// Reset discards the session unconditionally. Calls already issued to the
// stores are abandoned, not cancelled; their outcome no longer touches the session.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.clearLocked()
}

func (s *Session) clearLocked() {
	s.state = StateIdle
	s.source = nil
	s.cover = nil
	s.stats = nil
	s.fields = model.TrackFields{}
	s.record = nil
}

func validateFields(uploaderID int64, fields model.TrackFields) error {
	var missing []string
	if strings.TrimSpace(fields.Title) == "" {
		missing = append(missing, FieldTitle)
	}
	if strings.TrimSpace(fields.Artist) == "" {
		missing = append(missing, FieldArtist)
	}
	if uploaderID <= 0 {
		missing = append(missing, "uploaderId")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}
