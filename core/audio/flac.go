package audio

import (
	"bytes"
	"fmt"

	"github.com/go-flac/go-flac"
)

// FLACDecoder reads the STREAMINFO block; frames are never decoded.
type FLACDecoder struct{}

// Decode implements Decoder.
func (FLACDecoder) Decode(data []byte) (DecodedAudio, error) {
	f, err := flac.ParseBytes(bytes.NewReader(data))
	if err != nil {
		return DecodedAudio{}, fmt.Errorf("failed to parse FLAC stream: %w", err)
	}

	info, err := f.GetStreamInfo()
	if err != nil {
		return DecodedAudio{}, fmt.Errorf("failed to read FLAC STREAMINFO: %w", err)
	}
	if info.SampleRate <= 0 {
		return DecodedAudio{}, fmt.Errorf("invalid FLAC sample rate %d", info.SampleRate)
	}

	return DecodedAudio{
		DurationSeconds: float64(info.SampleCount) / float64(info.SampleRate),
		SampleRateHz:    info.SampleRate,
		ChannelCount:    info.ChannelCount,
	}, nil
}
