// Package orchestrator wires the event queue to the TTS fetcher and the
// audio mixer: the consume/synthesize/submit loop described in spec §4.7.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mwzkhalil/comv2/pkg/audio"
	"github.com/mwzkhalil/comv2/pkg/commentary"
	"github.com/mwzkhalil/comv2/pkg/history"
	"github.com/mwzkhalil/comv2/pkg/logging"
	"github.com/mwzkhalil/comv2/pkg/match"
	"github.com/mwzkhalil/comv2/pkg/queue"
	"github.com/mwzkhalil/comv2/pkg/tts"
)

// Config holds the orchestrator's tunables, independent of which provider
// or transport backs each dependency.
type Config struct {
	TTSTimeout time.Duration
}

// Orchestrator drives the single consumer loop: queue.Next, match-lifecycle
// announcement injection, TTS synthesis, mixer submission, commit.
type Orchestrator struct {
	queue   *queue.Queue
	mixer   *audio.Mixer
	fetcher tts.Fetcher
	match   *match.State
	history *history.Sink

	ttsTimeout time.Duration
	logger     logging.Logger
}

// New builds an Orchestrator. history may be nil to disable the sink.
func New(q *queue.Queue, mixer *audio.Mixer, fetcher tts.Fetcher, m *match.State, historySink *history.Sink, cfg Config, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if cfg.TTSTimeout <= 0 {
		cfg.TTSTimeout = 8 * time.Second
	}
	o := &Orchestrator{
		queue:      q,
		mixer:      mixer,
		fetcher:    fetcher,
		match:      m,
		history:    historySink,
		ttsTimeout: cfg.TTSTimeout,
		logger:     logger,
	}
	if historySink != nil {
		mixer.SetRecorder(func(meta audio.SlotMeta, pcm []byte, duration time.Duration) {
			historySink.Submit(history.Item{
				EventID:  meta.EventID,
				MatchID:  meta.MatchID,
				PCM:      pcm,
				Duration: duration,
			})
		})
	}
	return o
}

// Run consumes events until ctx is cancelled or the queue is closed.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		event, ok := o.queue.Next(ctx)
		if !ok {
			return ErrClosed
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		o.resolveMatchLifecycle(ctx, event)
		o.dispatch(ctx, event)
	}
}

// resolveMatchLifecycle resets match state on a match change and injects
// any owed announcement as a synthetic priority-0 event ahead of the
// inbound one (spec §4.7).
func (o *Orchestrator) resolveMatchLifecycle(ctx context.Context, event commentary.Event) {
	if o.match == nil {
		return
	}
	if event.MatchID != o.match.MatchID {
		o.match.ResetIfMatchChanged(event.MatchID, "", "")
	}
	if event.Phase != "" {
		o.match.SetPhase(match.Phase(event.Phase))
	}

	if o.match.NeedsWelcome() {
		o.dispatchSynthetic(ctx, event.MatchID, o.match.WelcomeText())
	}
	if o.match.NeedsBreakAnnouncement() {
		o.dispatchSynthetic(ctx, event.MatchID, o.match.BreakText())
	}
	if o.match.NeedsEndAnnouncement() {
		o.dispatchSynthetic(ctx, event.MatchID, o.match.EndedText())
	}
}

// dispatchSynthetic submits an announcement at priority 0. Announcements
// have no upstream event id to checkpoint, so there is nothing to commit --
// the one-shot flag claimed in match.State is itself the durability record
// for "has this announcement been emitted".
func (o *Orchestrator) dispatchSynthetic(ctx context.Context, matchID, text string) {
	o.synthesizeAndSubmit(ctx, commentary.Event{
		EventID:  fmt.Sprintf("announcement-%s", uuid.NewString()),
		MatchID:  matchID,
		Text:     text,
		Priority: commentary.PriorityAnnouncement,
	})
}

// dispatch handles one inbound event: synthesize, submit, wait, commit.
func (o *Orchestrator) dispatch(ctx context.Context, event commentary.Event) {
	outcome := o.synthesizeAndSubmit(ctx, event)
	if outcome == nil {
		return // ctx cancelled mid-flight; nothing to commit
	}

	// Commit policy (spec §4.7): a submission preempted before any frame
	// played is dropped, not committed -- the replacement will be committed
	// instead. Anything that played at least one frame, drained or not, is
	// committed, and so is a clean TTS failure/timeout (spec §7: retrying
	// stale commentary is worse than dropping it).
	if outcome.Preempted && !outcome.Played {
		o.logger.Info("orchestrator: event displaced before any frame played, not committed", "event_id", event.EventID)
		return
	}

	if err := o.queue.Commit(event.MatchID, event.EventID); err != nil {
		o.logger.Error("orchestrator: checkpoint commit failed", "event_id", event.EventID, "error", err)
	}
}

// synthesizeAndSubmit runs the TTS fetch concurrently with mixer playback
// and returns the mixer's outcome, or nil if ctx was cancelled first.
func (o *Orchestrator) synthesizeAndSubmit(ctx context.Context, event commentary.Event) *audio.Outcome {
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := o.mixer.Submit(int(event.Priority), event.EventID, event.MatchID)
	excitement := event.Intensity.Excitement()

	go func() {
		err := o.fetcher.Synthesize(fetchCtx, event.Text, excitement, o.ttsTimeout, sub.Append)
		if err != nil {
			o.logger.Warn("orchestrator: tts fetch ended", "event_id", event.EventID, "error", err)
		}
		sub.Close()
	}()

	select {
	case outcome := <-sub.Outcome():
		return &outcome
	case <-ctx.Done():
		return nil
	}
}
