package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"
)

// crossfadeMS is how much of the loop's tail is blended into its head at
// load time so the wrap point never produces an audible seam (spec §4.1,
// option (b)).
const crossfadeMS = 20

// AmbienceLoop owns one decoded PCM asset and plays it back forever,
// wrapping via a pointer into a pre-crossfaded buffer. It is driven
// exclusively by the mixer's own callback thread -- Pull and SetGain are
// only ever called from there, so no locking is needed on the hot path.
// Gain itself is stored atomically so Warn/metrics code on other threads
// can read CurrentGain() for observability without racing the callback.
type AmbienceLoop struct {
	frames     [][2]int16 // stereo frames, crossfaded and ready to loop
	pos        int
	gainBits   atomic.Uint64 // float64 bits of the gain currently applied
	sampleRate int
	silent     bool // true if the asset failed to load; ambience channel stays silent
}

// LoadAmbience decodes a WAV asset and prepares it for looped stereo
// playback. Mono sources are expanded to stereo. If r is nil (e.g. the
// configured file is missing), a silent loop is returned so the engine can
// still run with a logged warning -- per spec §4.1, a missing ambience
// asset must not prevent startup.
func LoadAmbience(r io.Reader, expectSampleRate int) (*AmbienceLoop, error) {
	if r == nil {
		return newSilentLoop(expectSampleRate), nil
	}

	decoded, err := DecodeWAV(r)
	if err != nil {
		return nil, fmt.Errorf("audio: loading ambience: %w", err)
	}
	if decoded.SampleRate != expectSampleRate {
		return nil, fmt.Errorf("audio: ambience sample rate %d does not match configured rate %d (no resampling is performed)", decoded.SampleRate, expectSampleRate)
	}

	frames := toStereoFrames(decoded.PCM, decoded.Channels)
	if len(frames) == 0 {
		return nil, fmt.Errorf("audio: ambience asset has no samples")
	}

	frames = crossfadeFrames(frames, expectSampleRate)

	loop := &AmbienceLoop{frames: frames, sampleRate: expectSampleRate}
	loop.setGainBits(0)
	return loop, nil
}

func newSilentLoop(sampleRate int) *AmbienceLoop {
	l := &AmbienceLoop{frames: [][2]int16{{0, 0}}, sampleRate: sampleRate, silent: true}
	return l
}

// Silent reports whether this loop has no real ambience asset backing it.
func (a *AmbienceLoop) Silent() bool { return a.silent }

// SetGain stores the gain to apply to subsequently pulled frames. Called
// once per block by the mixer after advancing the Ducking Controller.
func (a *AmbienceLoop) SetGain(g float64) {
	a.setGainBits(g)
}

func (a *AmbienceLoop) setGainBits(g float64) {
	a.gainBits.Store(floatBits(g))
}

// CurrentGain returns the gain last applied (safe to call from any thread).
func (a *AmbienceLoop) CurrentGain() float64 {
	return floatFromBits(a.gainBits.Load())
}

// Pull returns n stereo frames of ambience at the currently set gain,
// wrapping around the loop as needed. Never blocks, never allocates more
// than the returned slice.
func (a *AmbienceLoop) Pull(n int) [][2]int16 {
	out := make([][2]int16, n)
	if a.silent {
		return out // zero-filled
	}
	gain := a.CurrentGain()
	total := len(a.frames)
	for i := 0; i < n; i++ {
		f := a.frames[a.pos]
		out[i][0] = scale(f[0], gain)
		out[i][1] = scale(f[1], gain)
		a.pos++
		if a.pos >= total {
			a.pos = 0
		}
	}
	return out
}

func scale(sample int16, gain float64) int16 {
	v := float64(sample) * gain
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}

// toStereoFrames converts interleaved 16-bit PCM (mono or stereo) into
// stereo frame pairs.
func toStereoFrames(pcm []byte, channels int) [][2]int16 {
	bytesPerFrame := 2 * channels
	if bytesPerFrame == 0 {
		return nil
	}
	n := len(pcm) / bytesPerFrame
	frames := make([][2]int16, n)
	for i := 0; i < n; i++ {
		off := i * bytesPerFrame
		switch channels {
		case 1:
			s := int16(binary.LittleEndian.Uint16(pcm[off : off+2]))
			frames[i] = [2]int16{s, s}
		default: // stereo or more -- take first two channels
			l := int16(binary.LittleEndian.Uint16(pcm[off : off+2]))
			rr := int16(binary.LittleEndian.Uint16(pcm[off+2 : off+4]))
			frames[i] = [2]int16{l, rr}
		}
	}
	return frames
}

// crossfadeFrames blends the last crossfadeMS of the loop into its first
// crossfadeMS in place and returns the loop without that tail, so playback
// runs from just before the tail straight into the blended head and
// repeated wrapping introduces no audible seam.
func crossfadeFrames(frames [][2]int16, sampleRate int) [][2]int16 {
	n := sampleRate * crossfadeMS / 1000
	if n <= 0 || n*2 >= len(frames) {
		return frames // asset too short to crossfade meaningfully
	}
	tailStart := len(frames) - n
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n) // 0 -> 1 across the fade window
		head := frames[i]
		tail := frames[tailStart+i]
		frames[i] = [2]int16{
			mix(tail[0], head[0], t),
			mix(tail[1], head[1], t),
		}
	}
	return frames[:tailStart]
}

// mix linearly interpolates from 'from' (t=0) to 'to' (t=1).
func mix(from, to int16, t float64) int16 {
	v := float64(from)*(1-t) + float64(to)*t
	return int16(v)
}
