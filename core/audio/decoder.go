package audio

import (
	"bytes"
	"fmt"
)

// DecodedAudio is the structural information a decoder reports for one payload.
type DecodedAudio struct {
	DurationSeconds float64
	SampleRateHz    int
	ChannelCount    int
}

// Decoder turns raw bytes into structural audio information.
type Decoder interface {
	Decode(data []byte) (DecodedAudio, error)
}

// MultiDecoder 按魔数分派到具体容器的解码器
type MultiDecoder struct {
	flac Decoder
	wav  Decoder
	mp3  Decoder
}

// NewDecoder returns a decoder that understands FLAC, WAV and MP3 payloads.
func NewDecoder() *MultiDecoder {
	return &MultiDecoder{
		flac: FLACDecoder{},
		wav:  WAVDecoder{},
		mp3:  MP3Decoder{},
	}
}

// Decode sniffs the container and delegates.
func (m *MultiDecoder) Decode(data []byte) (DecodedAudio, error) {
	body := data[id3v2Size(data):]

	switch {
	case bytes.HasPrefix(body, []byte("fLaC")):
		return m.flac.Decode(body)
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return m.wav.Decode(data)
	case isMPEGFrameSync(body):
		return m.mp3.Decode(body)
	default:
		return DecodedAudio{}, fmt.Errorf("%w (%d bytes)", ErrUnrecognizedAudio, len(data))
	}
}

// id3v2Size returns the length of a leading ID3v2 tag, or 0 when there is none.
func id3v2Size(data []byte) int {
	if len(data) < 10 || !bytes.Equal(data[0:3], []byte("ID3")) {
		return 0
	}
	// 同步安全整数，每字节只用低 7 位
	size := int(data[6]&0x7f)<<21 | int(data[7]&0x7f)<<14 | int(data[8]&0x7f)<<7 | int(data[9]&0x7f)
	total := 10 + size
	if data[5]&0x10 != 0 {
		total += 10 // footer present
	}
	if total > len(data) {
		return len(data)
	}
	return total
}

func isMPEGFrameSync(data []byte) bool {
	return len(data) >= 4 && data[0] == 0xff && data[1]&0xe0 == 0xe0
}
