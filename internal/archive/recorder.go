package archive

import (
	"context"
	"time"

	"github.com/DoyleJ11/crash-backend/internal/engine"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const DefaultQueueSize = 128

// Recorder queues finished rounds for a Sink. Engines never wait on the
// database: when the queue is full the round is dropped and logged.
type Recorder struct {
	sink  Sink
	queue chan Round
	log   *zap.Logger
}

func NewRecorder(sink Sink, size int, log *zap.Logger) *Recorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{sink: sink, queue: make(chan Round, size), log: log}
}

// ForTable returns the engine listener for one table.
func (r *Recorder) ForTable(code string) engine.Listener {
	return tableListener{r: r, code: code}
}

func (r *Recorder) enqueue(round Round) {
	select {
	case r.queue <- round:
	default:
		r.log.Warn("archive queue full, dropping round",
			zap.String("table", round.TableCode),
			zap.String("round_id", round.RoundID),
		)
	}
}

// Run writes queued rounds until ctx is done, then flushes what is left
// with a short deadline.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case round := <-r.queue:
			r.save(ctx, round)
		case <-ctx.Done():
			return r.flush()
		}
	}
}

func (r *Recorder) save(ctx context.Context, round Round) {
	if err := r.sink.SaveRound(ctx, round); err != nil {
		r.log.Error("archive round failed", zap.String("round_id", round.RoundID), zap.Error(err))
	}
}

func (r *Recorder) flush() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	for {
		select {
		case round := <-r.queue:
			err = multierr.Append(err, r.sink.SaveRound(ctx, round))
		default:
			return err
		}
	}
}

type tableListener struct {
	engine.NopListener
	r    *Recorder
	code string
}

func (t tableListener) OnRoundCrashed(res engine.RoundResult) {
	t.r.enqueue(FromResult(t.code, res))
}
