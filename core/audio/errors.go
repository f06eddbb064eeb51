package audio

import (
	"errors"
	"fmt"
)

// ErrUnrecognizedAudio is returned by the decoder when the payload matches no supported container.
var ErrUnrecognizedAudio = errors.New("unrecognized audio container")

// AnalysisError 表示文件无法被解析为音频，本次上传尝试随之作废。
type AnalysisError struct {
	File string
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyze %q: %v", e.File, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
