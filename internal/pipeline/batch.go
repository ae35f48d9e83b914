package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/vitalens/internal/config"
	"github.com/sanspareilsmyn/vitalens/internal/message"
	"github.com/sanspareilsmyn/vitalens/internal/roi"
	"github.com/sanspareilsmyn/vitalens/internal/session"
	"github.com/sanspareilsmyn/vitalens/internal/vitals"
)

// Batch evaluates a whole recording at once. Extraction and per-prefix
// estimation run on a worker pool; one goroutine folds the results in frame
// order, so the outcome equals streaming the same accepted frames.
type Batch struct {
	estimator *vitals.Estimator
	roiCfg    config.ROIConfig
	workers   int
	timeout   time.Duration
	reporter  *Reporter
	logger    *zap.Logger
}

// NewBatch creates a batch evaluator. reporter may be nil.
func NewBatch(estimator *vitals.Estimator, roiCfg config.ROIConfig, srv config.ServerConfig, reporter *Reporter, logger *zap.Logger) *Batch {
	workers := srv.BatchWorkers
	if workers < 1 {
		workers = 1
	}
	return &Batch{
		estimator: estimator,
		roiCfg:    roiCfg,
		workers:   workers,
		timeout:   srv.BatchTimeout,
		reporter:  reporter,
		logger:    logger,
	}
}

type extraction struct {
	sample   roi.Sample
	accepted bool
}

// Evaluate runs the batch under the configured timeout. It fails with
// ErrInvalidFrame, ErrBatchTimeout or ErrBatchCancelled.
func (b *Batch) Evaluate(ctx context.Context, req message.BatchRequest) (message.BatchResponse, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	id := uuid.NewString()
	logger := b.logger.With(zap.String("session_id", id), zap.Int("frames", len(req.Frames)))
	started := time.Now()

	resp, err := b.evaluate(ctx, id, req)
	switch {
	case err == nil:
		batchRequests.WithLabelValues("ok").Inc()
		logger.Info("Batch evaluated",
			zap.Int("accepted", resp.Frames),
			zap.Bool("complete", resp.Complete),
			zap.Duration("elapsed", time.Since(started)),
		)
	case errors.Is(err, ErrInvalidFrame):
		batchRequests.WithLabelValues("invalid_frame").Inc()
		logger.Warn("Batch rejected", zap.Error(err))
	case errors.Is(err, ErrBatchTimeout):
		batchRequests.WithLabelValues("timeout").Inc()
		logger.Warn("Batch timed out", zap.Duration("timeout", b.timeout))
	default:
		batchRequests.WithLabelValues("cancelled").Inc()
		logger.Info("Batch cancelled", zap.Error(err))
	}
	return resp, err
}

func (b *Batch) evaluate(ctx context.Context, id string, req message.BatchRequest) (message.BatchResponse, error) {
	extracted := make([]extraction, len(req.Frames))
	err := b.parallel(ctx, len(req.Frames), func(i int) error {
		start := time.Now()
		ex, err := b.extract(req, i)
		out := session.Outcome{Accepted: ex.accepted}
		if !ex.accepted {
			out.Status = session.StatusLowConfidence
			if req.Frames[i].Face == nil {
				out.Status = session.StatusNoFace
			}
		}
		ObserveFrame(message.SourceBatch, out, err, time.Since(start))
		if err != nil {
			return fmt.Errorf("%w %d: %w", ErrInvalidFrame, i, err)
		}
		extracted[i] = ex
		return nil
	})
	if err != nil {
		return message.BatchResponse{}, err
	}

	limit := b.estimator.Config().TotalFrames
	var green, red, infra []float64
	var samples []roi.Sample
	for _, ex := range extracted {
		if !ex.accepted || len(samples) == limit {
			continue
		}
		samples = append(samples, ex.sample)
		green = append(green, ex.sample.Green)
		red = append(red, ex.sample.Red)
		infra = append(infra, ex.sample.Infra)
	}

	estimates := make([]vitals.Estimate, len(samples))
	err = b.parallel(ctx, len(samples), func(i int) error {
		estimates[i] = b.estimator.Estimate(green[:i+1], red[:i+1], infra[:i+1])
		return nil
	})
	if err != nil {
		return message.BatchResponse{}, err
	}

	s := session.New(b.estimator, b.logger.With(zap.String("session_id", id)))
	if err := s.SetAttributes(req.UserAttributes); err != nil {
		return message.BatchResponse{}, err
	}
	var res session.FrameResult
	for i, smp := range samples {
		res = s.AppendEstimated(smp, estimates[i])
	}
	if len(samples) == 0 {
		res = session.FrameResult{Snapshot: s.Snapshot(), State: s.State()}
	}

	complete := res.State == session.StateComplete
	if complete && b.reporter != nil {
		b.reporter.Deliver(ctx, NewReport(id, message.SourceBatch, res, req.UserAttributes))
	}

	return message.BatchResponse{
		SessionID:  id,
		Metrics:    res.Snapshot,
		Scores:     res.Scores,
		Attributes: req.UserAttributes,
		Frames:     res.Frames,
		Complete:   complete,
	}, nil
}

// extract decodes and gates frame i. Movement is not checked: a recording has
// no live subject to ask to hold still.
func (b *Batch) extract(req message.BatchRequest, i int) (extraction, error) {
	f, err := req.Frames[i].Frame(req.FrameWidth, req.FrameHeight)
	if err != nil {
		return extraction{}, err
	}
	if _, ok := session.Gate(f, b.roiCfg, nil); !ok {
		return extraction{}, nil
	}
	sample, err := roi.Extract(f)
	if err != nil {
		return extraction{}, err
	}
	return extraction{sample: sample, accepted: true}, nil
}

// parallel runs fn for every index in [0,n) on the worker pool. It stops
// handing out work on the first error or when ctx ends, and reports the
// context only when that left work undone.
func (b *Batch) parallel(ctx context.Context, n int, fn func(i int) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	for w := 0; w < b.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := fn(i); err != nil {
					select {
					case errCh <- err:
					default:
					}
					cancel()
					return
				}
			}
		}()
	}

	stopped := false
feed:
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			stopped = true
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			stopped = true
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
	}
	// Every job ran, so a context that ended afterwards is not an error.
	if !stopped {
		return nil
	}
	return contextError(ctx)
}

func contextError(ctx context.Context) error {
	switch err := context.Cause(ctx); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrBatchTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrBatchCancelled, err)
	}
}
