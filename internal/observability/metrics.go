package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry frame outcomes recorded by ObserveFrame.
const (
	FrameClean     = "clean"
	FrameCorrected = "corrected"
	FrameFailed    = "failed"
)

// MissionCollector bundles Prometheus metrics for mission execution.
type MissionCollector struct {
	gatherer prometheus.Gatherer

	TasksTotal          *prometheus.CounterVec
	TasksPending        prometheus.Gauge
	HopsTotal           prometheus.Counter
	TelemetryFrames     *prometheus.CounterVec
	HazardBlocksTotal   prometheus.Counter
	HazardDelaySeconds  prometheus.Histogram
	RouteLengthNodes    prometheus.Histogram
	RouteSelectDuration prometheus.Histogram
}

// NewMissionCollector registers mission metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Registering twice against the same registry returns the existing collectors.
func NewMissionCollector(reg prometheus.Registerer) (*MissionCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tasks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mission_tasks_total",
		Help: "Tasks that reached a terminal status, labeled by status.",
	}, []string{"status"}), "mission_tasks_total")
	if err != nil {
		return nil, err
	}

	pending, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mission_tasks_pending",
		Help: "Tasks currently waiting in the scheduler.",
	}), "mission_tasks_pending")
	if err != nil {
		return nil, err
	}

	hops, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mission_hops_total",
		Help: "Route hops walked by the agent.",
	}), "mission_hops_total")
	if err != nil {
		return nil, err
	}

	frames, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mission_telemetry_frames_total",
		Help: "Position reports sent over the simulated channel, labeled by decode outcome.",
	}, []string{"outcome"}), "mission_telemetry_frames_total")
	if err != nil {
		return nil, err
	}

	blocks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mission_hazard_blocks_total",
		Help: "Hops on which the hazard field blocked the agent.",
	}), "mission_hazard_blocks_total")
	if err != nil {
		return nil, err
	}

	delay, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mission_hazard_delay_seconds",
		Help:    "Transit pauses caused by blocked hops.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5, 10},
	}), "mission_hazard_delay_seconds")
	if err != nil {
		return nil, err
	}

	routeLen, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mission_route_length_nodes",
		Help:    "Node count of the routes selected for tasks.",
		Buckets: prometheus.LinearBuckets(1, 1, 12),
	}), "mission_route_length_nodes")
	if err != nil {
		return nil, err
	}

	selectDur, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mission_route_selection_duration_seconds",
		Help:    "Duration of candidate route discovery and arbitration.",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "mission_route_selection_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &MissionCollector{
		gatherer:            gatherer,
		TasksTotal:          tasks,
		TasksPending:        pending,
		HopsTotal:           hops,
		TelemetryFrames:     frames,
		HazardBlocksTotal:   blocks,
		HazardDelaySeconds:  delay,
		RouteLengthNodes:    routeLen,
		RouteSelectDuration: selectDur,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *MissionCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *MissionCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTask counts a task reaching status.
func (c *MissionCollector) ObserveTask(status string) {
	if c == nil || c.TasksTotal == nil {
		return
	}
	c.TasksTotal.WithLabelValues(status).Inc()
}

// SetPending updates the pending-task gauge.
func (c *MissionCollector) SetPending(count int) {
	if c == nil || c.TasksPending == nil {
		return
	}
	c.TasksPending.Set(float64(count))
}

// ObserveHop counts one walked hop.
func (c *MissionCollector) ObserveHop() {
	if c == nil || c.HopsTotal == nil {
		return
	}
	c.HopsTotal.Inc()
}

// ObserveFrame counts a telemetry frame by outcome.
func (c *MissionCollector) ObserveFrame(outcome string) {
	if c == nil || c.TelemetryFrames == nil {
		return
	}
	c.TelemetryFrames.WithLabelValues(outcome).Inc()
}

// ObserveBlock records a blocked hop and the pause it caused.
func (c *MissionCollector) ObserveBlock(pause time.Duration) {
	if c == nil {
		return
	}
	if c.HazardBlocksTotal != nil {
		c.HazardBlocksTotal.Inc()
	}
	if c.HazardDelaySeconds != nil {
		c.HazardDelaySeconds.Observe(pause.Seconds())
	}
}

// ObserveRoute records the selected route length and how long selection took.
func (c *MissionCollector) ObserveRoute(nodes int, took time.Duration) {
	if c == nil {
		return
	}
	if c.RouteLengthNodes != nil {
		c.RouteLengthNodes.Observe(float64(nodes))
	}
	if c.RouteSelectDuration != nil {
		c.RouteSelectDuration.Observe(took.Seconds())
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
