// Package assistant runs the conversation loop: a capture goroutine feeding a
// bounded queue and a processing goroutine that transcribes, classifies and
// answers one phrase at a time.
package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"voice-loop/internal/asr"
	"voice-loop/internal/audio"
	"voice-loop/internal/classifier"
	"voice-loop/internal/history"
	"voice-loop/internal/llm"
	"voice-loop/internal/logging"
	"voice-loop/internal/state"
	"voice-loop/internal/tts"
)

// Source yields endpointed phrases from the microphone.
type Source interface {
	Listen(ctx context.Context) (audio.Frame, error)
	Close() error
}

// Generator produces a reply for the conversation so far. It must always
// return usable text, substituting a fallback on failure.
type Generator interface {
	Generate(ctx context.Context, turns []history.Turn) string
}

// maxCaptureErrors consecutive read failures end capture for good.
const maxCaptureErrors = 5

type Options struct {
	QueueSize   int
	PollTimeout time.Duration
	HistorySize int
	// KeepQueuedOnSpeak disables discarding phrases queued before Speaking.
	KeepQueuedOnSpeak bool
}

func DefaultOptions() Options {
	return Options{
		QueueSize:   8,
		PollTimeout: time.Second,
		HistorySize: history.DefaultCapacity,
	}
}

// Stats are cumulative counters for one Loop.
type Stats struct {
	Captured      int64
	Enqueued      int64
	DroppedBusy   int64
	DroppedFull   int64
	Flushed       int64
	Processed     int64
	Silent        int64
	ServiceErrors int64
	Replies       int64
}

type counters struct {
	captured, enqueued, droppedBusy, droppedFull, flushed atomic.Int64
	processed, silent, serviceErrors, replies             atomic.Int64
}

// Loop coordinates capture and processing. Create with New and drive with Run.
type Loop struct {
	src        Source
	transcribe asr.Transcriber
	classify   *classifier.Classifier
	generate   Generator
	speak      tts.Synthesizer

	opts    Options
	state   *state.Manager
	history *history.Ring
	queue   chan audio.Frame
	stats   counters

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup

	mu            sync.Mutex
	cancelCapture context.CancelFunc
}

// New wires the loop. Synthesis failures are absorbed by tts.Fallback.
func New(src Source, tr asr.Transcriber, cls *classifier.Classifier, gen Generator, syn tts.Synthesizer, opts Options) *Loop {
	def := DefaultOptions()
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = def.PollTimeout
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = def.HistorySize
	}
	if _, ok := syn.(*tts.Fallback); !ok {
		syn = tts.NewFallback(syn)
	}

	l := &Loop{
		src:        src,
		transcribe: tr,
		classify:   cls,
		generate:   gen,
		speak:      syn,
		opts:       opts,
		state:      state.NewManager(),
		history:    history.NewRing(opts.HistorySize),
		queue:      make(chan audio.Frame, opts.QueueSize),
		stopCh:     make(chan struct{}),
	}
	l.state.OnChange(func(from, to state.State) {
		logging.Debugw("state changed", "from", from.String(), "to", to.String())
	})
	return l
}

// ErrStopped is returned by Run on a loop that has already been stopped.
var ErrStopped = errors.New("conversation loop stopped")

// Run starts capture and processing and blocks until the loop is stopped,
// either by Stop or by ctx. It returns once both goroutines have exited,
// which includes waiting out any in-flight transcription or speech.
func (l *Loop) Run(ctx context.Context) error {
	captureCtx, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	select {
	case <-l.stopCh:
		l.mu.Unlock()
		cancel()
		return ErrStopped
	default:
	}
	if err := l.state.Start(); err != nil {
		l.mu.Unlock()
		cancel()
		return err
	}
	l.cancelCapture = cancel
	l.wg.Add(2)
	l.mu.Unlock()

	// in-flight work outlives Stop; each call is bounded by its own timeout
	work := context.WithoutCancel(ctx)

	go l.captureLoop(captureCtx)
	go l.processLoop(work)
	logging.Infow("listening",
		"queue_size", l.opts.QueueSize,
		"poll_timeout", l.opts.PollTimeout.String(),
		"history_size", l.history.Cap(),
	)

	select {
	case <-ctx.Done():
		l.halt()
	case <-l.stopCh:
	}

	l.wg.Wait()
	s := l.Stats()
	st := l.state.Stats()
	logging.Infow("conversation loop stopped",
		"processed", s.Processed,
		"replies", s.Replies,
		"dropped_busy", s.DroppedBusy,
		"flushed", s.Flushed,
		"transitions", st.Transitions,
		"time_speaking", st.TimeInSpeaking.String(),
		"turns", l.history.Len(),
	)
	return nil
}

// Stop moves the loop to Idle, tears capture down and waits for both
// goroutines. Queued phrases are abandoned; an in-flight transcription or
// reply runs to completion first.
func (l *Loop) Stop() {
	l.halt()
	l.wg.Wait()
}

func (l *Loop) halt() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.state.Stop()
		close(l.stopCh)
		cancel := l.cancelCapture
		l.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
}

// State reports the current session state.
func (l *Loop) State() state.State { return l.state.GetState() }

// History returns a copy of the recorded turns, oldest first.
func (l *Loop) History() []history.Turn { return l.history.Snapshot() }

// Queued is the number of phrases waiting to be processed.
func (l *Loop) Queued() int { return len(l.queue) }

func (l *Loop) Stats() Stats {
	return Stats{
		Captured:      l.stats.captured.Load(),
		Enqueued:      l.stats.enqueued.Load(),
		DroppedBusy:   l.stats.droppedBusy.Load(),
		DroppedFull:   l.stats.droppedFull.Load(),
		Flushed:       l.stats.flushed.Load(),
		Processed:     l.stats.processed.Load(),
		Silent:        l.stats.silent.Load(),
		ServiceErrors: l.stats.serviceErrors.Load(),
		Replies:       l.stats.replies.Load(),
	}
}

func (l *Loop) captureLoop(ctx context.Context) {
	defer l.wg.Done()
	defer func() {
		if err := l.src.Close(); err != nil {
			logging.Warnw("closing audio source failed", "error", err)
		}
	}()

	failures := 0
	for {
		frame, err := l.src.Listen(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, audio.ErrClosed) {
				return
			}
			failures++
			logging.Warnw("capture failed", "error", err, "consecutive", failures)
			if failures >= maxCaptureErrors {
				logging.Errorw("capture giving up, stopping loop", "error", err)
				l.halt()
				return
			}
			continue
		}
		failures = 0
		l.stats.captured.Add(1)
		l.offer(frame)
	}
}

// offer enqueues frame only while Listening. The check and the send happen
// under the state lock so no transition can slip in between.
func (l *Loop) offer(frame audio.Frame) {
	full := false
	ok := l.state.WhileListening(func() {
		select {
		case l.queue <- frame:
			l.stats.enqueued.Add(1)
		default:
			full = true
		}
	})

	switch {
	case !ok:
		l.stats.droppedBusy.Add(1)
		logging.Debugw("phrase dropped while busy", "utterance_id", frame.ID, "state", l.state.GetState().String())
	case full:
		l.stats.droppedFull.Add(1)
		logging.Warnw("queue full, phrase dropped", "utterance_id", frame.ID, "queue_size", l.opts.QueueSize)
	}
}

func (l *Loop) processLoop(ctx context.Context) {
	defer l.wg.Done()

	timer := time.NewTimer(l.opts.PollTimeout)
	defer timer.Stop()

	for {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(l.opts.PollTimeout)

		select {
		case <-l.stopCh:
			return
		case <-timer.C:
			// poll timeout, re-check the stop signal
		case frame := <-l.queue:
			l.handle(ctx, frame)
		}
	}
}

// handle processes one phrase to completion: transcribe, classify and,
// when warranted, reply.
func (l *Loop) handle(ctx context.Context, frame audio.Frame) {
	if err := l.state.BeginProcessing(); err != nil {
		// stopped while the phrase was queued
		return
	}
	defer func() { _ = l.state.Resume() }()
	l.stats.processed.Add(1)

	u, err := l.transcribe.Transcribe(ctx, frame)
	switch {
	case errors.Is(err, asr.ErrSilence):
		l.stats.silent.Add(1)
		logging.Debugw("heard silence or unintelligible audio", "utterance_id", frame.ID)
		return
	case err != nil:
		l.stats.serviceErrors.Add(1)
		logging.Warnw("transcription failed", "utterance_id", frame.ID, "error", err)
		return
	}

	text := strings.TrimSpace(u.Text)
	if text == "" {
		l.stats.silent.Add(1)
		logging.Debugw("heard silence or unintelligible audio", "utterance_id", frame.ID)
		return
	}

	fields := []interface{}{"utterance_id", frame.ID, "text", text}
	if u.HasConfidence {
		fields = append(fields, "confidence", u.Confidence)
	}
	logging.Infow("recognized", fields...)

	l.respond(ctx, frame.ID, text)
}

// respond records the user turn and, if the classifier says so, generates
// and speaks a reply. The user turn is recorded either way.
func (l *Loop) respond(ctx context.Context, id, text string) {
	l.history.AddUser(text)

	d := l.classify.Classify(text)
	logging.Infow("classified",
		"utterance_id", id,
		"addressed", d.Addressed,
		"question", d.Question,
		"pattern", d.Matched,
	)
	if !d.Respond() {
		logging.Infow("conversation noted, no response needed", "utterance_id", id)
		return
	}

	reply := strings.TrimSpace(l.generate.Generate(ctx, l.history.Snapshot()))
	if reply == "" {
		reply = llm.ReplyUnexpected
	}
	l.history.AddAssistant(reply)
	l.stats.replies.Add(1)
	logging.Infow("assistant reply", "utterance_id", id, "reply", reply)

	if err := l.state.BeginSpeaking(); err != nil {
		// stopped during generation
		return
	}
	if !l.opts.KeepQueuedOnSpeak {
		if n := l.flush(); n > 0 {
			logging.Debugw("discarded phrases queued before speaking", "utterance_id", id, "count", n)
		}
	}

	start := time.Now()
	_ = l.speak.Speak(ctx, reply)
	logging.Debugw("finished speaking", "utterance_id", id, "duration_ms", time.Since(start).Milliseconds())
}

// flush drops every queued phrase and returns how many were dropped.
func (l *Loop) flush() int {
	n := 0
	for {
		select {
		case <-l.queue:
			n++
		default:
			l.stats.flushed.Add(int64(n))
			return n
		}
	}
}
