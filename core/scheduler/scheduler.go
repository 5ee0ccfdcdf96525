package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"

	orchestration "github.com/andoma/nora-core/core"
	"github.com/andoma/nora-core/core/fulfillment"
	"github.com/andoma/nora-core/core/sessions"
)

const defaultInterval = 60 * time.Second

// InputSink receives the synthetic inputs produced by input programs.
// *orchestration.Orchestrator satisfies it.
type InputSink interface {
	ProcessInput(ctx context.Context, params orchestration.InputParams, session *sessions.Session) (bool, error)
}

// Scheduler polls the job store on a fixed tick and runs every matching job
// concurrently. Ticks are wall-clock driven: a slow job never delays the
// next tick, and overlapping ticks are tolerated.
type Scheduler struct {
	store  Store
	sink   InputSink
	output orchestration.OutputChannel

	managerUID string
	interval   time.Duration
	clock      func() time.Time

	started atomic.Bool
}

type Option func(*Scheduler)

// WithInterval overrides the tick interval, mainly for tests.
func WithInterval(interval time.Duration) Option {
	return func(s *Scheduler) { s.interval = interval }
}

// WithClock overrides the time source, for deterministic predicate tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// New builds a scheduler scoped to the jobs owned by managerUID.
func New(store Store, sink InputSink, output orchestration.OutputChannel, managerUID string, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      store,
		sink:       sink,
		output:     output,
		managerUID: managerUID,
		interval:   defaultInterval,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start fires one immediate boot tick and then ticks every interval until
// ctx is cancelled. A second call is a logged no-op.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		logger.WarnContext(ctx, "attempted to start an already started scheduler")
		return
	}

	logger.InfoContext(ctx, "scheduler polling started", "interval", s.interval.String())

	go s.Tick(ctx, Condition{Field: FieldOnBoot})

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				go s.Tick(ctx)
			}
		}
	}()
}

// Tick runs one predicate-matching pass. extra conditions join the standard
// time projections (used for the boot tick).
func (s *Scheduler) Tick(ctx context.Context, extra ...Condition) {
	ctx, span := tracer.Start(ctx, "scheduler tick")
	defer span.End()

	conditions := append(ConditionsAt(s.clock()), extra...)
	jobs, err := s.store.Find(ctx, Query{ManagerUID: s.managerUID, Any: conditions})
	if err != nil {
		recordedErr := fmt.Errorf("failed to query jobs: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return
	}

	for _, job := range jobs {
		go s.runJob(ctx, job)
	}
}

// runJob executes one job. Failures are caught, logged and swallowed so one
// job can never take down a tick or its siblings.
func (s *Scheduler) runJob(ctx context.Context, job Job) {
	ctx, span := tracer.Start(ctx, "run job")
	defer span.End()

	defer func() {
		if recovered := recover(); recovered != nil {
			recordedErr := fmt.Errorf("job %s panicked: %v", job.ID, recovered)
			span.RecordError(recordedErr)
			span.SetStatus(codes.Error, recordedErr.Error())
			logger.ErrorContext(ctx, "job panicked", "job.id", job.ID, "panic", fmt.Sprint(recovered))
		}
	}()

	logger.InfoContext(ctx, "running job",
		"job.id", job.ID, "program", string(job.Program), "session.id", sessionID(job.Session))

	if err := s.runProgram(ctx, job); err != nil {
		recordedErr := fmt.Errorf("job %s failed: %w", job.ID, err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		logger.ErrorContext(ctx, "job failed", "job.id", job.ID, "error", err.Error())
	}
}

// runProgram dispatches over the closed set of program kinds.
func (s *Scheduler) runProgram(ctx context.Context, job Job) error {
	switch job.Program {
	case ProgramInput:
		params, err := inputParamsFromArgs(job.Args)
		if err != nil {
			return err
		}
		_, err = s.sink.ProcessInput(ctx, params, job.Session)
		return err

	case ProgramSay:
		text, _ := job.Args["text"].(string)
		if text == "" {
			return fmt.Errorf("say program requires a text arg")
		}
		s.output.Deliver(ctx, &fulfillment.Fulfillment{Text: text}, job.Session, nil)
		return nil

	default:
		return fmt.Errorf("unknown program %q", job.Program)
	}
}

// inputParamsFromArgs maps a job's args onto the orchestrator's entry
// contract: either a text input or a named event with parameters.
func inputParamsFromArgs(args map[string]any) (orchestration.InputParams, error) {
	if text, ok := args["text"].(string); ok && text != "" {
		return orchestration.InputParams{Text: text}, nil
	}

	if rawEvent, ok := args["event"].(map[string]any); ok {
		name, _ := rawEvent["name"].(string)
		if name == "" {
			return orchestration.InputParams{}, fmt.Errorf("input program event requires a name")
		}
		parameters, _ := rawEvent["parameters"].(map[string]any)
		return orchestration.InputParams{Event: &orchestration.Event{Name: name, Parameters: parameters}}, nil
	}

	return orchestration.InputParams{}, fmt.Errorf("input program requires a text or event arg")
}

func sessionID(session *sessions.Session) string {
	if session == nil {
		return ""
	}
	return session.ID
}
