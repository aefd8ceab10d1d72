package studio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	waveFormatPCM   = 1
	waveFormatFloat = 3
	exportChannels  = 2
)

// Wav encodes the first two channels of the buffer as a stereo .wav file at
// the buffer's sample rate, either as int16 PCM or as IEEE float32 samples.
func Wav(buffer *AudioBuffer, pcm16 bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWav(&buf, buffer, pcm16); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Raw encodes the buffer as headerless interleaved stereo samples.
func Raw(buffer *AudioBuffer, pcm16 bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeSamples(&buf, buffer.Interleaved(), pcm16); err != nil {
		return nil, fmt.Errorf("raw export: %w", err)
	}
	return buf.Bytes(), nil
}

func WriteWav(w io.Writer, buffer *AudioBuffer, pcm16 bool) error {
	data := buffer.Interleaved()
	if err := writeWavHeader(w, len(data)/exportChannels, buffer.SampleRate, pcm16); err != nil {
		return fmt.Errorf("wav export: %w", err)
	}
	if err := writeSamples(w, data, pcm16); err != nil {
		return fmt.Errorf("wav export: %w", err)
	}
	return nil
}

func writeSamples(w io.Writer, data []float32, pcm16 bool) error {
	if !pcm16 {
		return binary.Write(w, binary.LittleEndian, data)
	}
	ints := make([]int16, len(data))
	for i, v := range data {
		ints[i] = int16(math.Round(float64(min(max(v, -1), 1)) * math.MaxInt16))
	}
	return binary.Write(w, binary.LittleEndian, ints)
}

type (
	chunkHeader struct {
		ID   [4]byte
		Size uint32
	}

	fmtChunk struct {
		Format        uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}
)

// writeWavHeader writes RIFF, fmt and data chunk headers for frames stereo
// frames. Float files get the extension size field and a fact chunk, as
// required for non-PCM formats.
// See http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
func writeWavHeader(w io.Writer, frames, sampleRate int, pcm16 bool) error {
	bytesPerSample, format, fmtSize := 4, uint16(waveFormatFloat), uint32(18)
	if pcm16 {
		bytesPerSample, format, fmtSize = 2, waveFormatPCM, 16
	}
	blockAlign := exportChannels * bytesPerSample
	dataSize := uint32(frames * blockAlign)
	riffSize := 4 + 8 + fmtSize + 8 + dataSize
	if !pcm16 {
		riffSize += 12
	}
	parts := []any{
		chunkHeader{[4]byte{'R', 'I', 'F', 'F'}, riffSize},
		[4]byte{'W', 'A', 'V', 'E'},
		chunkHeader{[4]byte{'f', 'm', 't', ' '}, fmtSize},
		fmtChunk{
			Format:        format,
			Channels:      exportChannels,
			SampleRate:    uint32(sampleRate),
			ByteRate:      uint32(sampleRate * blockAlign),
			BlockAlign:    uint16(blockAlign),
			BitsPerSample: uint16(8 * bytesPerSample),
		},
	}
	if !pcm16 {
		parts = append(parts,
			uint16(0),
			chunkHeader{[4]byte{'f', 'a', 'c', 't'}, 4},
			uint32(frames))
	}
	parts = append(parts, chunkHeader{[4]byte{'d', 'a', 't', 'a'}, dataSize})
	for _, p := range parts {
		if err := binary.Write(w, binary.LittleEndian, p); err != nil {
			return err
		}
	}
	return nil
}
