package audio

import (
	"bytes"
	"encoding/binary"
)

// wavBytes builds a PCM WAV with the given layout and dataBytes of silence.
func wavBytes(sampleRate, channels, bitsPerSample, dataBytes int) []byte {
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataBytes))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataBytes))
	buf.Write(make([]byte, dataBytes))
	return buf.Bytes()
}

// flacBytes builds a FLAC stream holding only a STREAMINFO block.
func flacBytes(sampleRate, channels, bitsPerSample int, totalSamples uint64) []byte {
	info := make([]byte, 34)
	binary.BigEndian.PutUint16(info[0:2], 4096)
	binary.BigEndian.PutUint16(info[2:4], 4096)
	packed := uint64(sampleRate)<<44 | uint64(channels-1)<<41 | uint64(bitsPerSample-1)<<36 | totalSamples
	binary.BigEndian.PutUint64(info[10:18], packed)

	buf := &bytes.Buffer{}
	buf.WriteString("fLaC")
	buf.Write([]byte{0x80, 0x00, 0x00, 34}) // last block, type STREAMINFO
	buf.Write(info)
	return buf.Bytes()
}

// mp3Bytes builds n MPEG-1 Layer III frames at 128kbps/44.1kHz with zeroed bodies.
func mp3Bytes(n int, mono bool) []byte {
	const frameLen = 417 // 144 * 128000 / 44100
	mode := byte(0x00)
	if mono {
		mode = 0xc0
	}

	buf := &bytes.Buffer{}
	for i := 0; i < n; i++ {
		frame := make([]byte, frameLen)
		frame[0], frame[1], frame[2], frame[3] = 0xff, 0xfb, 0x90, mode
		buf.Write(frame)
	}
	return buf.Bytes()
}
