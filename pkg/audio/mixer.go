package audio

import (
	"encoding/binary"
	"sort"
	"sync"
	"time"

	"github.com/mwzkhalil/comv2/pkg/logging"
)

// Outcome reports what happened to a TTS submission once the mixer is done
// with it. Played is true as soon as at least one frame reached the
// device -- per spec §4.7 that alone is sufficient for the Orchestrator to
// commit the event, even if the submission was later preempted.
type Outcome struct {
	Played    bool
	Preempted bool
}

// ttsSlot holds one in-flight TTS submission's PCM as it streams in. The
// byte buffer is appended to from a TTS worker goroutine and drained from
// the mixer's callback thread; a dedicated mutex keeps that handoff a
// short critical section the callback can skip via TryLock rather than
// block on.
type ttsSlot struct {
	mu      sync.Mutex
	pcm     []byte // mono 16-bit PCM appended so far
	pos     int    // bytes already consumed
	eof     bool
	started bool // true once at least one frame has been pulled

	priority int
	seq      int64
	eventID  string
	matchID  string

	framesPlayed int64
	recorded     [][2]int16 // mixed output while this slot was active, for the history sink

	outcomeCh   chan Outcome
	outcomeOnce sync.Once
}

func newTTSSlot(priority int, seq int64, eventID, matchID string) *ttsSlot {
	return &ttsSlot{
		priority:  priority,
		seq:       seq,
		eventID:   eventID,
		matchID:   matchID,
		outcomeCh: make(chan Outcome, 1),
	}
}

func (s *ttsSlot) append(chunk []byte) {
	s.mu.Lock()
	s.pcm = append(s.pcm, chunk...)
	s.mu.Unlock()
}

func (s *ttsSlot) close() {
	s.mu.Lock()
	s.eof = true
	s.mu.Unlock()
}

func (s *ttsSlot) finish(o Outcome) {
	s.outcomeOnce.Do(func() {
		s.outcomeCh <- o
		close(s.outcomeCh)
	})
}

// pullInto consumes up to n mono samples and returns them expanded to
// stereo frames, whether playback just started this call, and whether the
// slot is now fully exhausted (eof and fully drained).
func (s *ttsSlot) pullInto(n int) (frames [][2]int16, justStarted bool, exhausted bool) {
	if !s.mu.TryLock() {
		// Contended -- continue with stale state for this block rather
		// than stall the realtime callback.
		return nil, false, false
	}
	defer s.mu.Unlock()

	availableBytes := len(s.pcm) - s.pos
	availableSamples := availableBytes / 2
	take := n
	if take > availableSamples {
		take = availableSamples
	}

	if take > 0 {
		if !s.started {
			s.started = true
			justStarted = true
		}
		frames = make([][2]int16, take)
		for i := 0; i < take; i++ {
			off := s.pos + i*2
			v := int16(binary.LittleEndian.Uint16(s.pcm[off : off+2]))
			frames[i] = [2]int16{v, v}
		}
		s.pos += take * 2
		s.framesPlayed += int64(take)
	}

	exhausted = s.eof && s.pos >= len(s.pcm)
	return frames, justStarted, exhausted
}

// Submission is the handle a TTS Fetcher uses to stream decoded chunks
// into the mixer and observe the eventual outcome.
type Submission struct {
	slot *ttsSlot
}

// Append hands the mixer another chunk of decoded mono PCM.
func (sub *Submission) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	sub.slot.append(chunk)
}

// Close signals that no more chunks are coming (stream finished or was
// abandoned on timeout/error).
func (sub *Submission) Close() {
	sub.slot.close()
}

// Outcome blocks until the mixer has finished with this submission
// (drained, preempted before any frame played, or preempted after partial
// playback).
func (sub *Submission) Outcome() <-chan Outcome {
	return sub.slot.outcomeCh
}

// SlotMeta identifies the event a finished mixer submission belonged to,
// passed to the history sink callback.
type SlotMeta struct {
	EventID string
	MatchID string
}

// RecordingSink receives the mixed waveform (TTS plus ducked ambience) for
// an event once its slot drains naturally, plus its play duration.
type RecordingSink func(meta SlotMeta, mixedPCM []byte, duration time.Duration)

// Mixer owns the ambience ring, the ducking controller, and the single
// active TTS slot plus its pending queue. Tick is the realtime callback's
// entry point; Submit is called from the Orchestrator's goroutine.
type Mixer struct {
	ctrlMu  sync.Mutex
	active  *ttsSlot
	pending []*ttsSlot
	seqGen  int64

	ambience   *AmbienceLoop
	ducking    *DuckingController
	sampleRate int

	blockSize int
	logger    logging.Logger
	recorder  RecordingSink
}

// NewMixer builds a Mixer over an already-loaded ambience loop and ducking
// controller. The history recorder is installed separately via SetRecorder
// and stays nil while the history sink is disabled.
func NewMixer(ambience *AmbienceLoop, ducking *DuckingController, blockSize int, logger logging.Logger) *Mixer {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	sampleRate := 0
	if ambience != nil {
		sampleRate = ambience.sampleRate
	}
	return &Mixer{
		ambience:   ambience,
		ducking:    ducking,
		blockSize:  blockSize,
		logger:     logger,
		sampleRate: sampleRate,
	}
}

// SetRecorder installs the history sink callback invoked whenever a slot
// drains to completion.
func (m *Mixer) SetRecorder(r RecordingSink) {
	m.ctrlMu.Lock()
	m.recorder = r
	m.ctrlMu.Unlock()
}

// Submit registers a new TTS buffer at the given priority (smaller wins)
// for the given event/match ids, used only to label the history recording.
// Strictly-higher-priority submissions preempt the active slot immediately;
// equal-or-lower priority submissions queue behind it; if nothing is
// active, the submission becomes active right away (spec §4.4).
func (m *Mixer) Submit(priority int, eventID, matchID string) *Submission {
	m.ctrlMu.Lock()
	m.seqGen++
	slot := newTTSSlot(priority, m.seqGen, eventID, matchID)

	var displaced *ttsSlot
	switch {
	case m.active == nil:
		m.active = slot
	case priority < m.active.priority:
		displaced = m.active
		m.active = slot
	default:
		m.pending = append(m.pending, slot)
		sort.SliceStable(m.pending, func(i, j int) bool {
			if m.pending[i].priority != m.pending[j].priority {
				return m.pending[i].priority < m.pending[j].priority
			}
			return m.pending[i].seq < m.pending[j].seq
		})
	}
	m.ctrlMu.Unlock()

	if displaced != nil {
		m.logger.Info("tts submission preempted before becoming exhausted", "priority", displaced.priority)
		displaced.finish(Outcome{Played: displaced.framesPlayed > 0, Preempted: true})
	}

	return &Submission{slot: slot}
}

// Tick runs the five-step mixing algorithm (spec §4.4) for one block of n
// stereo frames and returns the interleaved int16 samples ready for the
// device.
func (m *Mixer) Tick(n int) [][2]int16 {
	// ctrlMu only changes hands on Submit/promote, which happen once per
	// commentary event rather than once per block, so a brief lock here
	// does not contend in the steady state. The per-slot byte buffer
	// (read far more often, from a streaming TTS worker) uses TryLock
	// instead -- see ttsSlot.pullInto.
	m.ctrlMu.Lock()
	active := m.active
	m.ctrlMu.Unlock()

	// Step 1 + 2: pull ambience, scaled by the ducking controller's current
	// gain, which we advance by one step this tick.
	gain := m.ducking.Tick()
	m.ambience.SetGain(gain)
	out := m.ambience.Pull(n)

	if active == nil {
		m.maybeRestore()
		return out
	}

	// Step 3: mix in up to n frames from the active TTS slot.
	ttsFrames, justStarted, exhausted := active.pullInto(n)
	if justStarted {
		m.ducking.Duck()
	}
	for i := range ttsFrames {
		out[i][0] = addClamp(out[i][0], ttsFrames[i][0])
		out[i][1] = addClamp(out[i][1], ttsFrames[i][1])
	}

	if m.recorder != nil {
		active.recorded = append(active.recorded, out...)
	}

	// Step 5: retire the active slot once exhausted and promote the next
	// pending submission, if any.
	if exhausted {
		played := active.framesPlayed > 0
		active.finish(Outcome{Played: played})
		if played && m.recorder != nil && m.sampleRate > 0 {
			duration := time.Duration(len(active.recorded)) * time.Second / time.Duration(m.sampleRate)
			m.recorder(SlotMeta{EventID: active.eventID, MatchID: active.matchID}, InterleaveLE16(active.recorded), duration)
		}
		m.promoteNext()
	}

	return out
}

func (m *Mixer) promoteNext() {
	m.ctrlMu.Lock()
	if len(m.pending) == 0 {
		m.active = nil
		m.ctrlMu.Unlock()
		m.ducking.Restore()
		return
	}
	next := m.pending[0]
	m.pending = m.pending[1:]
	m.active = next
	m.ctrlMu.Unlock()
}

func (m *Mixer) maybeRestore() {
	m.ctrlMu.Lock()
	idle := m.active == nil && len(m.pending) == 0
	m.ctrlMu.Unlock()
	if idle {
		m.ducking.Restore()
	}
}

func addClamp(a, b int16) int16 {
	v := int32(a) + int32(b)
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// InterleaveLE16 packs stereo frames into interleaved little-endian 16-bit
// PCM bytes, the wire format the audio device and the history sink expect.
func InterleaveLE16(frames [][2]int16) []byte {
	out := make([]byte, len(frames)*4)
	for i, f := range frames {
		off := i * 4
		binary.LittleEndian.PutUint16(out[off:], uint16(f[0]))
		binary.LittleEndian.PutUint16(out[off+2:], uint16(f[1]))
	}
	return out
}
