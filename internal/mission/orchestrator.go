// Package mission schedules rescue tasks and drives the agent through them.
package mission

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/rescue-mission-sim/core"
	"github.com/signalsfoundry/rescue-mission-sim/internal/logging"
	"github.com/signalsfoundry/rescue-mission-sim/internal/observability"
	"github.com/signalsfoundry/rescue-mission-sim/internal/routing"
	"github.com/signalsfoundry/rescue-mission-sim/internal/telemetry"
	"github.com/signalsfoundry/rescue-mission-sim/model"
	"github.com/signalsfoundry/rescue-mission-sim/timectrl"
)

// Defaults applied by NewOrchestrator.
const (
	DefaultAlternatives          = 2
	DefaultCorruptionProbability = 0.2
	DefaultDelayUnit             = time.Second
)

// RoutePlanner discovers candidate routes.
type RoutePlanner interface {
	AlternativePaths(start, end, k int) []core.Path
}

// RouteSelector picks one candidate; nil means no route.
type RouteSelector interface {
	Select(paths []core.Path) core.Path
}

// RouteRanker is optionally implemented by a RouteSelector to explain its
// choice in debug logs.
type RouteRanker interface {
	Evaluate(paths []core.Path) []routing.Scored
}

// Hazards reports per-hop interference.
type Hazards interface {
	IsBlocked(u, v int) bool
	DelayFactor(u, v int) float64
}

// Channel encodes, corrupts and decodes position reports.
type Channel interface {
	Encode(text string) (telemetry.Frame, error)
	Decode(frame telemetry.Frame) (telemetry.DecodeResult, error)
	InjectErrors(frame telemetry.Frame, count int) telemetry.Frame
}

// Report summarises how one task was executed.
type Report struct {
	TaskID      int
	Target      int
	Status      model.TaskStatus
	Candidates  []core.Path
	Route       core.Path
	Hops        int
	Corrupted   int
	Corrected   int
	Blocked     int
	TotalDelay  time.Duration
	FailureHint string
}

// Orchestrator drives one task at a time from pending to a terminal status.
type Orchestrator struct {
	routes    RoutePlanner
	selector  RouteSelector
	hazards   Hazards
	channel   Channel
	scheduler *Scheduler

	origin                int
	alternatives          int
	corruptionProbability float64
	delayUnit             time.Duration

	clock   timectrl.Clock
	rng     *rand.Rand
	log     logging.Logger
	metrics *observability.MissionCollector
	tracer  trace.Tracer

	reports []Report
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithOrigin sets the node every route starts from.
func WithOrigin(node int) Option {
	return func(o *Orchestrator) { o.origin = node }
}

// WithAlternatives sets how many candidate routes are requested per task.
func WithAlternatives(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.alternatives = k
		}
	}
}

// WithCorruptionProbability sets the chance that a position report has one
// bit flipped in transit.
func WithCorruptionProbability(p float64) Option {
	return func(o *Orchestrator) { o.corruptionProbability = p }
}

// WithDelayUnit sets the pause for a blocked hop with delay factor 1.0.
func WithDelayUnit(d time.Duration) Option {
	return func(o *Orchestrator) { o.delayUnit = d }
}

func WithClock(c timectrl.Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithRand(r *rand.Rand) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.rng = r
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithMetrics(m *observability.MissionCollector) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// NewOrchestrator wires the mission components together.
func NewOrchestrator(routes RoutePlanner, selector RouteSelector, hazards Hazards, channel Channel, scheduler *Scheduler, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		routes:                routes,
		selector:              selector,
		hazards:               hazards,
		channel:               channel,
		scheduler:             scheduler,
		alternatives:          DefaultAlternatives,
		corruptionProbability: DefaultCorruptionProbability,
		delayUnit:             DefaultDelayUnit,
		clock:                 timectrl.RealClock{},
		log:                   logging.Noop(),
		tracer:                observability.Tracer(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return o
}

// AddTask queues a task. Callers are expected to reject empty descriptions.
func (o *Orchestrator) AddTask(target, priority int, description string) model.Task {
	task := o.scheduler.Add(target, priority, description)
	o.metrics.SetPending(o.scheduler.PendingCount())
	return task
}

// Advance runs the next pending task to a terminal status and returns it.
// It returns false when nothing is pending.
func (o *Orchestrator) Advance(ctx context.Context) (model.Task, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	task, ok := o.scheduler.NextPending()
	if !ok {
		o.metrics.SetPending(0)
		return model.Task{}, false
	}

	ctx, span := o.tracer.Start(ctx, "mission.task", trace.WithAttributes(
		attribute.Int("task.id", task.ID),
		attribute.Int("task.target", task.Target),
		attribute.Int("task.priority", task.Priority),
	))
	defer span.End()

	log := o.log.With(logging.Int("task_id", task.ID), logging.Int("target", task.Target))
	// The ID came from the scheduler, so the update cannot miss.
	_ = o.scheduler.SetStatus(task.ID, model.TaskInProgress)
	o.metrics.SetPending(o.scheduler.PendingCount())
	log.Info(ctx, "task started",
		logging.String("description", task.Description),
		logging.Int("priority", task.Priority),
	)

	report := o.execute(ctx, task, log, span)
	if err := o.scheduler.SetStatus(task.ID, report.Status); err != nil {
		log.Warn(ctx, "status update rejected", logging.Error(err))
	}
	o.reports = append(o.reports, report)
	o.metrics.ObserveTask(report.Status.String())

	span.SetAttributes(
		attribute.String("task.status", report.Status.String()),
		attribute.Int("route.hops", report.Hops),
		attribute.Int("hazard.blocked", report.Blocked),
	)
	if report.Status != model.TaskCompleted {
		span.SetStatus(codes.Error, report.FailureHint)
		log.Warn(ctx, "task ended without completion",
			logging.String("status", report.Status.String()),
			logging.String("reason", report.FailureHint),
		)
	} else {
		log.Info(ctx, "task completed",
			logging.Any("route", report.Route),
			logging.Int("corrected_frames", report.Corrected),
			logging.Int("blocked_hops", report.Blocked),
			logging.Duration("delay", report.TotalDelay),
		)
	}

	done, _ := o.scheduler.Get(task.ID)
	return done, true
}

// execute plans and walks the route for task, returning the terminal status
// in the report.
func (o *Orchestrator) execute(ctx context.Context, task model.Task, log logging.Logger, span trace.Span) Report {
	report := Report{TaskID: task.ID, Target: task.Target}

	started := time.Now()
	report.Candidates = o.routes.AlternativePaths(o.origin, task.Target, o.alternatives)
	route := o.selector.Select(report.Candidates)
	o.metrics.ObserveRoute(len(route), time.Since(started))
	report.Route = route

	if !route.Reaches(o.origin, task.Target) {
		report.Status = model.TaskFailed
		report.FailureHint = fmt.Sprintf("no route from %d to %d", o.origin, task.Target)
		return report
	}
	fields := []logging.Field{
		logging.Any("route", route),
		logging.Int("hops", route.Hops()),
		logging.Int("candidates", len(report.Candidates)),
	}
	if ranker, ok := o.selector.(RouteRanker); ok {
		fields = append(fields, logging.Any("ranked", ranker.Evaluate(report.Candidates)))
	}
	log.Debug(ctx, "route selected", fields...)

	for i := 0; i < len(route)-1; i++ {
		u, v := route[i], route[i+1]
		if err := o.transmit(ctx, u, v, &report, log); err != nil {
			report.Status = model.TaskError
			report.FailureHint = err.Error()
			return report
		}

		if o.hazards != nil && o.hazards.IsBlocked(u, v) {
			factor := o.hazards.DelayFactor(u, v)
			pause := time.Duration(factor * float64(o.delayUnit))
			log.Warn(ctx, "hop blocked",
				logging.Int("from", u),
				logging.Int("to", v),
				logging.Float("delay_factor", factor),
			)
			span.AddEvent("hazard.blocked", trace.WithAttributes(
				attribute.Int("from", u),
				attribute.Int("to", v),
				attribute.Float64("delay_factor", factor),
			))
			o.clock.Sleep(pause)
			report.Blocked++
			report.TotalDelay += pause
			o.metrics.ObserveBlock(pause)
		}

		report.Hops++
		o.metrics.ObserveHop()
	}

	report.Status = model.TaskCompleted
	return report
}

// transmit sends the position report for hop u->v through the channel and
// checks that it survives.
func (o *Orchestrator) transmit(ctx context.Context, u, v int, report *Report, log logging.Logger) error {
	descriptor := fmt.Sprintf("Location: %d -> %d", u, v)

	frame, err := o.channel.Encode(descriptor)
	if err != nil {
		o.metrics.ObserveFrame(observability.FrameFailed)
		return fmt.Errorf("encode position report: %w", err)
	}
	if o.rng.Float64() < o.corruptionProbability {
		frame = o.channel.InjectErrors(frame, 1)
		report.Corrupted++
		log.Debug(ctx, "position report corrupted in transit", logging.Int("from", u), logging.Int("to", v))
	}

	res, err := o.channel.Decode(frame)
	if err != nil {
		o.metrics.ObserveFrame(observability.FrameFailed)
		return fmt.Errorf("decode position report %d->%d: %w", u, v, err)
	}
	if res.Text != descriptor {
		o.metrics.ObserveFrame(observability.FrameFailed)
		return fmt.Errorf("position report %d->%d decoded as %q", u, v, res.Text)
	}

	if res.Corrected {
		report.Corrected++
		o.metrics.ObserveFrame(observability.FrameCorrected)
	} else {
		o.metrics.ObserveFrame(observability.FrameClean)
	}
	log.Debug(ctx, "position report received", logging.String("payload", res.Text), logging.Bool("corrected", res.Corrected))
	return nil
}

// RunToCompletion advances until no task is pending and returns the final
// per-status counts. Cancelling ctx stops between tasks, never mid-hop.
func (o *Orchestrator) RunToCompletion(ctx context.Context) map[string]int {
	if ctx == nil {
		ctx = context.Background()
	}
	for ctx.Err() == nil {
		if _, ok := o.Advance(ctx); !ok {
			break
		}
	}
	stats := o.scheduler.StatsByName()
	o.log.Info(ctx, "mission finished", logging.Any("stats", stats))
	return stats
}

// Stats returns the current per-status counts by name.
func (o *Orchestrator) Stats() map[string]int {
	return o.scheduler.StatsByName()
}

// Reports returns the execution reports of every task advanced so far.
func (o *Orchestrator) Reports() []Report {
	out := make([]Report, len(o.reports))
	copy(out, o.reports)
	return out
}

// LastReport returns the report of the most recently advanced task.
func (o *Orchestrator) LastReport() (Report, bool) {
	if len(o.reports) == 0 {
		return Report{}, false
	}
	return o.reports[len(o.reports)-1], true
}
