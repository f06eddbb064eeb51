package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tcolgate/mp3"
)

// MP3Decoder sums frame durations; the sample data itself is never decoded.
type MP3Decoder struct{}

// Decode implements Decoder.
func (MP3Decoder) Decode(data []byte) (DecodedAudio, error) {
	d := mp3.NewDecoder(bytes.NewReader(data))

	var (
		frame    mp3.Frame
		skipped  int
		frames   int
		duration time.Duration
		out      DecodedAudio
	)
	for {
		if err := d.Decode(&frame, &skipped); err != nil {
			// truncated tail or trailing garbage after valid frames still counts
			if errors.Is(err, io.EOF) || frames > 0 {
				break
			}
			return DecodedAudio{}, fmt.Errorf("failed to decode MP3 frame: %w", err)
		}
		if frames == 0 {
			header := frame.Header()
			out.SampleRateHz = int(header.SampleRate())
			out.ChannelCount = 2
			if header.ChannelMode() == mp3.SingleChannel {
				out.ChannelCount = 1
			}
		}
		duration += frame.Duration()
		frames++
	}

	if frames == 0 {
		return DecodedAudio{}, errors.New("no MP3 frames found")
	}
	out.DurationSeconds = duration.Seconds()
	return out, nil
}
