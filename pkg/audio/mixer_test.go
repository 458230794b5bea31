package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

const testSampleRate = 22050

func testAmbience(t *testing.T) *AmbienceLoop {
	t.Helper()
	// A short constant-amplitude tone, long enough to exceed the crossfade window.
	n := testSampleRate // 1 second mono
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(1000)))
	}
	wav := NewWavBuffer(pcm, testSampleRate)
	loop, err := LoadAmbience(bytes.NewReader(wav), testSampleRate)
	if err != nil {
		t.Fatalf("LoadAmbience: %v", err)
	}
	return loop
}

func monoTone(samples int, amplitude int16) []byte {
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(amplitude))
	}
	return out
}

func TestMixerBasicPlaybackDucksAndRestores(t *testing.T) {
	ambience := testAmbience(t)
	duck := NewDuckingController(DefaultNominalGain, DefaultDuckedGain, DefaultRampMS, testSampleRate, 256)
	mx := NewMixer(ambience, duck, 256, nil)

	sub := mx.Submit(2, "e1", "m1") // normal priority
	sub.Append(monoTone(512, 5000))
	sub.Close()

	sawDucked := false
	for i := 0; i < 200; i++ {
		mx.Tick(256)
		if duck.IsDucking() {
			sawDucked = true
		}
	}

	select {
	case outcome := <-sub.Outcome():
		if !outcome.Played {
			t.Fatal("expected Played=true for fully drained submission")
		}
		if outcome.Preempted {
			t.Fatal("expected Preempted=false for a completed submission")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outcome")
	}

	if !sawDucked {
		t.Fatal("expected the mixer to duck while TTS audio was active")
	}
	if !duck.AtTarget() || duck.Current() != DefaultNominalGain {
		t.Fatalf("expected ambience restored to nominal after drain, got %f", duck.Current())
	}
}

func TestMixerPreemptsLowerPriorityActiveSlot(t *testing.T) {
	ambience := testAmbience(t)
	duck := NewDuckingController(DefaultNominalGain, DefaultDuckedGain, DefaultRampMS, testSampleRate, 256)
	mx := NewMixer(ambience, duck, 256, nil)

	low := mx.Submit(2, "e1", "m1") // normal
	low.Append(monoTone(100000, 3000))
	// don't close -- still "playing" when preempted

	mx.Tick(256) // let it start so Played becomes true

	high := mx.Submit(1, "e2", "m1") // special, strictly higher priority
	high.Append(monoTone(256, 6000))
	high.Close()

	select {
	case outcome := <-low.Outcome():
		if !outcome.Preempted {
			t.Fatal("expected the low-priority submission to be marked preempted")
		}
		if !outcome.Played {
			t.Fatal("expected Played=true since at least one frame was produced before preemption")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for preempted outcome")
	}

	// Drain the now-active high-priority submission.
	for i := 0; i < 10; i++ {
		mx.Tick(256)
	}
	select {
	case outcome := <-high.Outcome():
		if !outcome.Played {
			t.Fatal("expected the preempting submission to play")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for high-priority outcome")
	}
}

func TestMixerDoesNotPreemptOnEqualOrLowerPriority(t *testing.T) {
	ambience := testAmbience(t)
	duck := NewDuckingController(DefaultNominalGain, DefaultDuckedGain, DefaultRampMS, testSampleRate, 256)
	mx := NewMixer(ambience, duck, 256, nil)

	first := mx.Submit(2, "e1", "m1")
	first.Append(monoTone(256, 1000))
	first.Close()

	second := mx.Submit(2, "e2", "m1") // same priority -- queues, does not preempt
	second.Append(monoTone(256, 2000))
	second.Close()

	for i := 0; i < 10; i++ {
		mx.Tick(256)
	}

	select {
	case outcome := <-first.Outcome():
		if outcome.Preempted {
			t.Fatal("equal-priority submission should not preempt the active slot")
		}
	default:
		t.Fatal("expected first submission to have finished")
	}

	select {
	case outcome := <-second.Outcome():
		if !outcome.Played {
			t.Fatal("expected queued submission to eventually play")
		}
	default:
		t.Fatal("expected second submission to have finished by now")
	}
}

func TestMixerPendingSlotStaysUnduckedUntilFirstFrame(t *testing.T) {
	ambience := testAmbience(t)
	duck := NewDuckingController(DefaultNominalGain, DefaultDuckedGain, DefaultRampMS, testSampleRate, 256)
	mx := NewMixer(ambience, duck, 256, nil)

	sub := mx.Submit(2, "e1", "m1") // submitted but no bytes yet -- "pending"
	mx.Tick(256)
	if duck.IsDucking() {
		t.Fatal("should not duck before any PCM frame has arrived")
	}

	sub.Append(monoTone(256, 4000))
	mx.Tick(256)
	if !duck.IsDucking() {
		t.Fatal("should start ducking once the first PCM frame arrives")
	}
	sub.Close()
}

func TestMixerClearsSlotWithoutDuckingOnEmptyFailedFetch(t *testing.T) {
	ambience := testAmbience(t)
	duck := NewDuckingController(DefaultNominalGain, DefaultDuckedGain, DefaultRampMS, testSampleRate, 256)
	mx := NewMixer(ambience, duck, 256, nil)

	sub := mx.Submit(2, "e1", "m1")
	sub.Close() // fetch failed before any byte arrived

	mx.Tick(256)

	if duck.IsDucking() {
		t.Fatal("should never duck for a submission that delivered zero frames")
	}
	select {
	case outcome := <-sub.Outcome():
		if outcome.Played {
			t.Fatal("expected Played=false for an empty submission")
		}
	default:
		t.Fatal("expected outcome to be available after one tick")
	}
}

func TestMixerRecordsMixedWaveformOnDrain(t *testing.T) {
	ambience := testAmbience(t)
	duck := NewDuckingController(DefaultNominalGain, DefaultDuckedGain, DefaultRampMS, testSampleRate, 256)
	mx := NewMixer(ambience, duck, 256, nil)

	var gotMeta SlotMeta
	var gotPCM []byte
	mx.SetRecorder(func(meta SlotMeta, pcm []byte, duration time.Duration) {
		gotMeta = meta
		gotPCM = pcm
	})

	sub := mx.Submit(2, "e7", "m9")
	sub.Append(monoTone(256, 5000))
	sub.Close()

	for i := 0; i < 5; i++ {
		mx.Tick(256)
	}

	if gotMeta.EventID != "e7" || gotMeta.MatchID != "m9" {
		t.Fatalf("expected recorder to receive e7/m9, got %+v", gotMeta)
	}
	if len(gotPCM) == 0 {
		t.Fatal("expected non-empty recorded PCM")
	}
}
