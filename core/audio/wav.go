package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-audio/wav"
)

// WAVDecoder reads the fmt chunk and the data chunk length; samples are never decoded.
type WAVDecoder struct{}

// Decode implements Decoder.
func (WAVDecoder) Decode(data []byte) (DecodedAudio, error) {
	r := bytes.NewReader(data)
	d := wav.NewDecoder(r)

	d.ReadInfo()
	if err := d.Err(); err != nil {
		return DecodedAudio{}, fmt.Errorf("failed to read WAV header: %w", err)
	}
	if d.NumChans == 0 {
		return DecodedAudio{}, errors.New("WAV fmt chunk not found")
	}
	if d.SampleRate == 0 || d.AvgBytesPerSec == 0 {
		return DecodedAudio{}, fmt.Errorf("invalid WAV rates: sampleRate=%d byteRate=%d", d.SampleRate, d.AvgBytesPerSec)
	}

	if err := d.FwdToPCM(); err != nil {
		return DecodedAudio{}, fmt.Errorf("WAV data chunk not found: %w", err)
	}

	// 流式写出的文件可能留下 0xFFFFFFFF 或偏大的长度，按实际剩余字节截断。
	// 奇数长度补齐后 0xFFFFFFFF 会回绕成 0，同样按剩余字节处理
	pcmLen := d.PCMLen()
	if remaining := int64(r.Len()); pcmLen <= 0 || pcmLen > remaining {
		pcmLen = remaining
	}

	return DecodedAudio{
		DurationSeconds: float64(pcmLen) / float64(d.AvgBytesPerSec),
		SampleRateHz:    int(d.SampleRate),
		ChannelCount:    int(d.NumChans),
	}, nil
}
