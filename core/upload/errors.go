package upload

import (
	"errors"
	"fmt"
	"strings"

	"flacshare/core/audio"
	"flacshare/storage"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the session's current state.
	ErrInvalidState = errors.New("operation not allowed in current upload state")
	// ErrUnsupportedFile is returned when the selected file is not audio.
	ErrUnsupportedFile = errors.New("unsupported audio file")
	// ErrUnsupportedCover is returned when the cover is not an image.
	ErrUnsupportedCover = errors.New("cover must be an image")
	// ErrUnknownField is returned by UpdateField for names outside title/artist/album/lyrics.
	ErrUnknownField = errors.New("unknown field")
	// ErrSessionNotFound is returned by Manager for unknown or foreign session ids.
	ErrSessionNotFound = errors.New("upload session not found")
	// ErrSessionReset is returned when a session was reset while analysis was in flight.
	ErrSessionReset = errors.New("upload session was reset")
)

// AnalysisError is the extractor's failure type; analysis failures return the session to Idle.
type AnalysisError = audio.AnalysisError

// ValidationError 表示必填字段缺失，提交前即被拒绝，不产生任何存储调用。
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Stage names the commit step that failed.
type Stage string

const (
	StageAudio    Stage = "audio"
	StageCover    Stage = "cover"
	StageMetadata Stage = "metadata"
)

// CompensationWarning records a rollback delete that failed. It never replaces the primary error.
type CompensationWarning struct {
	Kind ResourceKind
	Key  string
	Err  error
}

func (w CompensationWarning) Error() string {
	return fmt.Sprintf("rollback of %s %q failed: %v", w.Kind, w.Key, w.Err)
}

func (w CompensationWarning) Unwrap() error {
	return w.Err
}

// Namespace returns the blob namespace the orphaned resource lives in.
func (w CompensationWarning) Namespace() storage.Namespace {
	return w.Kind.Namespace()
}

// UploadError 表示某个存储步骤失败；在返回前已对之前成功的步骤执行补偿。
type UploadError struct {
	Stage    Stage
	Err      error
	Warnings []CompensationWarning
}

func (e *UploadError) Error() string {
	msg := fmt.Sprintf("upload failed at %s stage: %v", e.Stage, e.Err)
	if len(e.Warnings) > 0 {
		msg += fmt.Sprintf(" (%d rollback warning(s))", len(e.Warnings))
	}
	return msg
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
