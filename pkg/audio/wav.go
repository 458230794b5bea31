// Package audio implements the ambience loop, ducking controller, and the
// realtime mixer/output callback (spec §4.1, §4.2, §4.4), plus the WAV
// codec both the ambience loader and the history sink depend on.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// NewWavBuffer encodes mono 16-bit PCM into a WAV container.
func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	return newWavBuffer(pcm, sampleRate, 1)
}

// NewStereoWavBuffer encodes interleaved stereo 16-bit PCM into a WAV
// container -- used by the Audio History Sink to persist mixed output.
func NewStereoWavBuffer(pcm []byte, sampleRate int) []byte {
	return newWavBuffer(pcm, sampleRate, 2)
}

func newWavBuffer(pcm []byte, sampleRate, channels int) []byte {
	buf := new(bytes.Buffer)

	blockAlign := uint16(channels * 2)
	byteRate := uint32(sampleRate * channels * 2)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, byteRate)
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// Decoded holds a fully-loaded PCM asset plus the format it was encoded at.
type Decoded struct {
	PCM        []byte // interleaved 16-bit samples, native channel count
	SampleRate int
	Channels   int
}

// DecodeWAV parses a canonical PCM WAV file (fmt chunk followed by data
// chunk; no resampling is performed -- spec §6 requires the asset to
// already match the engine's configured output format).
func DecodeWAV(r io.Reader) (Decoded, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Decoded{}, fmt.Errorf("audio: reading RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Decoded{}, fmt.Errorf("audio: not a RIFF/WAVE file")
	}

	var d Decoded
	var gotFmt bool

	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return Decoded{}, err
		}
		chunkID := string(hdr[0:4])
		chunkSize := binary.LittleEndian.Uint32(hdr[4:8])

		switch chunkID {
		case "fmt ":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, body); err != nil {
				return Decoded{}, fmt.Errorf("audio: reading fmt chunk: %w", err)
			}
			if len(body) < 16 {
				return Decoded{}, fmt.Errorf("audio: fmt chunk too short")
			}
			audioFormat := binary.LittleEndian.Uint16(body[0:2])
			if audioFormat != 1 {
				return Decoded{}, fmt.Errorf("audio: unsupported WAV format tag %d (only PCM is supported)", audioFormat)
			}
			d.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			d.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample := binary.LittleEndian.Uint16(body[14:16])
			if bitsPerSample != 16 {
				return Decoded{}, fmt.Errorf("audio: unsupported bit depth %d (only 16-bit PCM is supported)", bitsPerSample)
			}
			gotFmt = true
		case "data":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, body); err != nil {
				return Decoded{}, fmt.Errorf("audio: reading data chunk: %w", err)
			}
			d.PCM = body
		default:
			// skip unknown chunks (LIST, fact, etc), padded to even size
			skip := int64(chunkSize)
			if chunkSize%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				break
			}
		}
	}

	if !gotFmt {
		return Decoded{}, fmt.Errorf("audio: missing fmt chunk")
	}
	if d.PCM == nil {
		return Decoded{}, fmt.Errorf("audio: missing data chunk")
	}
	return d, nil
}
