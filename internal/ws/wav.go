package ws

import (
	"bytes"
	"encoding/binary"
)

// wrapPCM wraps raw little-endian int16 PCM samples in a standard 44-byte
// RIFF/WAVE header carrying sampleRate and channels in-band, so STT
// providers that sniff the container for sample rate/channel count (rather
// than trusting out-of-band hints) can read it directly.
func wrapPCM(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataLen := len(pcm)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16)) // fmt chunk size
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm)

	return buf.Bytes()
}

// Mic capture defaults used throughout the voice channel: mono, 16-bit,
// 16kHz, matching the original source's recording rate.
const (
	defaultSampleRate    = 16000
	defaultChannels      = 1
	defaultBitsPerSample = 16
)
