package audio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDecoder struct {
	name  string
	calls *[]string
}

func (r recordingDecoder) Decode(data []byte) (DecodedAudio, error) {
	*r.calls = append(*r.calls, r.name)
	return DecodedAudio{DurationSeconds: 1, SampleRateHz: 1, ChannelCount: 1}, nil
}

func TestMultiDecoderDispatch(t *testing.T) {
	id3 := []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 2, 0xaa, 0xbb}

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"flac", flacBytes(44100, 2, 16, 44100), "flac"},
		{"flac behind id3", append(append([]byte{}, id3...), flacBytes(44100, 2, 16, 44100)...), "flac"},
		{"wav", wavBytes(44100, 2, 16, 1024), "wav"},
		{"mp3", mp3Bytes(2, false), "mp3"},
		{"mp3 behind id3", append(append([]byte{}, id3...), mp3Bytes(2, false)...), "mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			m := &MultiDecoder{
				flac: recordingDecoder{"flac", &calls},
				wav:  recordingDecoder{"wav", &calls},
				mp3:  recordingDecoder{"mp3", &calls},
			}
			_, err := m.Decode(tt.data)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, calls)
		})
	}
}

func TestMultiDecoderRejectsUnknownBytes(t *testing.T) {
	_, err := NewDecoder().Decode([]byte("definitely not audio"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnrecognizedAudio))

	_, err = NewDecoder().Decode(nil)
	assert.True(t, errors.Is(err, ErrUnrecognizedAudio))
}

func TestID3v2Size(t *testing.T) {
	assert.Equal(t, 0, id3v2Size([]byte("fLaC")))
	assert.Equal(t, 12, id3v2Size([]byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 2, 0, 0}))
	// size larger than the payload is clamped
	assert.Equal(t, 10, id3v2Size([]byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0x7f, 0x7f}))
}

func TestWAVDecoder(t *testing.T) {
	// one second of 16-bit stereo at 48kHz
	decoded, err := WAVDecoder{}.Decode(wavBytes(48000, 2, 16, 48000*4))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, decoded.DurationSeconds, 1e-9)
	assert.Equal(t, 48000, decoded.SampleRateHz)
	assert.Equal(t, 2, decoded.ChannelCount)
}

func TestWAVDecoderClampsOversizedDataChunk(t *testing.T) {
	tests := []struct {
		name     string
		declared [4]byte
	}{
		{"streaming placeholder", [4]byte{0xff, 0xff, 0xff, 0xff}},
		{"even length past the payload", [4]byte{0xfe, 0xff, 0xff, 0x7f}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := wavBytes(8000, 1, 8, 4000)
			copy(data[40:44], tt.declared[:])

			decoded, err := WAVDecoder{}.Decode(data)
			require.NoError(t, err)
			assert.InDelta(t, 0.5, decoded.DurationSeconds, 1e-9)
			assert.Equal(t, 8000, decoded.SampleRateHz)
			assert.Equal(t, 1, decoded.ChannelCount)
		})
	}
}

func TestWAVDecoderErrors(t *testing.T) {
	_, err := WAVDecoder{}.Decode([]byte("RIFF\x00\x00\x00\x00WAVE"))
	assert.Error(t, err)

	_, err = WAVDecoder{}.Decode([]byte("nope"))
	assert.Error(t, err)

	// fmt chunk present, data chunk missing
	noData := wavBytes(8000, 1, 8, 0)
	_, err = WAVDecoder{}.Decode(noData[:36])
	assert.Error(t, err)
}

func TestFLACDecoder(t *testing.T) {
	decoded, err := FLACDecoder{}.Decode(flacBytes(96000, 2, 24, 96000*3))
	require.NoError(t, err)
	assert.InDelta(t, 3.0, decoded.DurationSeconds, 1e-9)
	assert.Equal(t, 96000, decoded.SampleRateHz)
	assert.Equal(t, 2, decoded.ChannelCount)
}

func TestMP3Decoder(t *testing.T) {
	decoded, err := MP3Decoder{}.Decode(mp3Bytes(10, true))
	require.NoError(t, err)
	assert.InDelta(t, 10*1152.0/44100.0, decoded.DurationSeconds, 0.01)
	assert.Equal(t, 44100, decoded.SampleRateHz)
	assert.Equal(t, 1, decoded.ChannelCount)
}
