package audio

import (
	"context"
	"errors"
	"fmt"
	"math"

	"flacshare/logger"
	"flacshare/model"

	"go.uber.org/zap"
)

// DefaultAlbum is prefilled when the file carries no album tag.
const DefaultAlbum = "Single"

// Analysis is the outcome of a successful analysis: immutable stats plus editable suggestions.
type Analysis struct {
	Stats  model.AudioStats
	Fields model.TrackFields
	// Artwork is set when the file carries embedded cover art
	Artwork *Artwork
}

// Analyzer 负责从上传的音频中提取结构化信息
type Analyzer struct {
	decoder Decoder
	log     *zap.Logger
}

// NewAnalyzer creates an Analyzer around the given decoder.
func NewAnalyzer(decoder Decoder) *Analyzer {
	return &Analyzer{
		decoder: decoder,
		log:     logger.Named("analyzer"),
	}
}

// Analyze decodes the file and derives stats and initial field values.
// Any failure is returned as *AnalysisError.
func (a *Analyzer) Analyze(ctx context.Context, file *model.FileHandle) (*Analysis, error) {
	if file == nil {
		return nil, &AnalysisError{Err: errors.New("no file selected")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &AnalysisError{File: file.Name, Err: err}
	}

	decoded, err := a.decoder.Decode(file.Data)
	if err != nil {
		a.log.Warn("音频解析失败", zap.String("file", file.Name), zap.Error(err))
		return nil, &AnalysisError{File: file.Name, Err: err}
	}

	if decoded.DurationSeconds <= 0 || math.IsNaN(decoded.DurationSeconds) || math.IsInf(decoded.DurationSeconds, 0) {
		return nil, &AnalysisError{File: file.Name, Err: fmt.Errorf("invalid duration %v", decoded.DurationSeconds)}
	}
	if decoded.SampleRateHz <= 0 || decoded.ChannelCount <= 0 {
		return nil, &AnalysisError{File: file.Name, Err: fmt.Errorf("invalid stream layout: %d Hz, %d channels", decoded.SampleRateHz, decoded.ChannelCount)}
	}

	stats := model.AudioStats{
		DurationSeconds: decoded.DurationSeconds,
		SampleRateHz:    decoded.SampleRateHz,
		ChannelCount:    decoded.ChannelCount,
		BitrateKbps:     EstimateBitrate(file.Size(), decoded.DurationSeconds),
		Format:          FormatFromFilename(file.Name),
	}

	guess := GuessFromFilename(file.Name)
	fields := model.TrackFields{
		Title:  guess.Title,
		Artist: guess.Artist,
		Album:  DefaultAlbum,
	}
	hints := readTagHints(file.Data)
	if hints.Album != "" {
		fields.Album = hints.Album
	}
	fields.Lyrics = hints.Lyrics

	a.log.Info("音频分析完成",
		zap.String("file", file.Name),
		zap.Float64("duration", stats.DurationSeconds),
		zap.Int("sampleRate", stats.SampleRateHz),
		zap.Int("channels", stats.ChannelCount),
		zap.Int("bitrateKbps", stats.BitrateKbps),
		zap.String("format", stats.Format))

	return &Analysis{Stats: stats, Fields: fields, Artwork: hints.Artwork}, nil
}

// EstimateBitrate returns round(size*8/duration/1000). It is an estimate from
// the file size, not the container's declared bitrate.
func EstimateBitrate(sizeBytes int64, durationSeconds float64) int {
	if durationSeconds <= 0 {
		return 0
	}
	return int(math.Round(float64(sizeBytes) * 8 / durationSeconds / 1000))
}
