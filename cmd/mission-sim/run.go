package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/rescue-mission-sim/internal/logging"
	"github.com/signalsfoundry/rescue-mission-sim/internal/mission"
	"github.com/signalsfoundry/rescue-mission-sim/internal/observability"
	"github.com/signalsfoundry/rescue-mission-sim/model"
	"github.com/signalsfoundry/rescue-mission-sim/timectrl"
)

var runFlags struct {
	interactive bool
	accelerated bool
	tick        time.Duration
	metricsAddr string
	delayUnit   time.Duration
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured mission until no task is pending",
	Long: `Build the site graph and hazard field, queue the scenario tasks and
execute them in priority order. With --interactive one task is advanced per
tick instead of draining the queue at once.`,
	Args: cobra.NoArgs,
	RunE: runMission,
}

func init() {
	runCmd.Flags().BoolVar(&runFlags.interactive, "interactive", false, "Advance one task per tick")
	runCmd.Flags().DurationVar(&runFlags.tick, "tick", time.Second, "Tick interval in interactive mode")
	runCmd.Flags().BoolVar(&runFlags.accelerated, "accelerated", false, "In interactive mode, advance ticks back to back instead of waiting out each tick")
	runCmd.Flags().StringVar(&runFlags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (empty disables)")
	runCmd.Flags().DurationVar(&runFlags.delayUnit, "delay-unit", time.Second, "Pause for a blocked hop with delay factor 1.0; overrides the scenario when set")
}

func runMission(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	cfg, err := loadMissionConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("delay-unit") {
		cfg.Mission.DelayUnit = runFlags.delayUnit
	}

	ctx, log := logging.WithRunLogger(cmd.Context(), newLogger(cmd))
	ctx = logging.ContextWithLogger(ctx, log)

	tracing, err := observability.StartTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
		RunID:       logging.RunIDFromContext(ctx),
		Output:      cmd.ErrOrStderr(),
	}, log)
	if err != nil {
		return fmt.Errorf("start tracing: %w", err)
	}
	defer tracing.Shutdown(ctx, log)

	var collector *observability.MissionCollector
	if runFlags.metricsAddr != "" {
		collector, err = observability.NewMissionCollector(prometheus.NewRegistry())
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		srv := serveMetrics(runFlags.metricsAddr, collector, log)
		defer shutdownServer(srv, log)
	}

	sim, err := mission.NewSimulation(cfg, timectrl.RealClock{},
		mission.WithLogger(log),
		mission.WithMetrics(collector),
		mission.WithTracer(tracing.Tracer()),
	)
	if err != nil {
		return err
	}
	log.Info(ctx, "mission configured",
		logging.Any("seed", sim.Seed),
		logging.Int("nodes", sim.Topology.NodeCount()),
		logging.Int("edges", sim.Topology.EdgeCount()),
		logging.Int("obstacles", sim.Hazards.ObstacleCount()),
		logging.Int("delayed_edges", sim.Hazards.DelayCount()),
		logging.String("strategy", sim.Evaluator.Strategy.Name()),
	)
	sim.LoadTasks(ctx, log)

	var stats map[string]int
	if runFlags.interactive {
		mode := timectrl.RealTime
		if runFlags.accelerated {
			mode = timectrl.Accelerated
		}
		stats = runInteractive(ctx, sim.Orchestrator, runFlags.tick, mode, log)
	} else {
		stats = sim.Orchestrator.RunToCompletion(ctx)
	}

	return writeSummary(cmd.OutOrStdout(), format, sim, stats)
}

// runInteractive advances one task per tick until the queue drains or ctx is
// cancelled.
func runInteractive(ctx context.Context, orch *mission.Orchestrator, tick time.Duration, mode timectrl.Mode, log logging.Logger) map[string]int {
	tc := timectrl.NewTimeController(time.Now().UTC(), tick, mode)
	log.Info(ctx, "interactive run", logging.String("mode", mode.String()), logging.Duration("tick", tick))
	tc.AddListener(func(now time.Time) bool {
		task, ok := orch.Advance(ctx)
		if !ok {
			return false
		}
		log.Debug(ctx, "tick",
			logging.String("sim_time", now.Format(time.RFC3339)),
			logging.Int("task_id", task.ID),
			logging.String("status", task.Status.String()),
		)
		return true
	})

	done := tc.Start(0)
	select {
	case <-done:
	case <-ctx.Done():
		tc.Stop()
		<-done
		log.Warn(ctx, "interactive run interrupted", logging.Error(ctx.Err()))
	}
	return orch.Stats()
}

type taskSummary struct {
	ID          int       `json:"id"`
	Target      int       `json:"target"`
	Priority    int       `json:"priority"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Route       []int     `json:"route,omitempty"`
	Hops        int       `json:"hops"`
	Corrected   int       `json:"corrected_frames"`
	Blocked     int       `json:"blocked_hops"`
	Delay       string    `json:"delay"`
	Reason      string    `json:"reason,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

type runSummary struct {
	Seed  uint64         `json:"seed"`
	Stats map[string]int `json:"stats"`
	Tasks []taskSummary  `json:"tasks"`
}

func summarize(sim *mission.Simulation, stats map[string]int) runSummary {
	reports := make(map[int]mission.Report)
	for _, r := range sim.Orchestrator.Reports() {
		reports[r.TaskID] = r
	}

	out := runSummary{Seed: sim.Seed, Stats: stats}
	for _, task := range sim.Scheduler.Tasks() {
		ts := taskSummary{
			ID:          task.ID,
			Target:      task.Target,
			Priority:    task.Priority,
			Description: task.Description,
			Status:      task.Status.String(),
		}
		if r, ok := reports[task.ID]; ok {
			ts.Route = r.Route
			ts.Hops = r.Hops
			ts.Corrected = r.Corrected
			ts.Blocked = r.Blocked
			ts.Delay = r.TotalDelay.String()
			ts.Reason = r.FailureHint
		}
		if task.CompletedAt != nil {
			ts.CompletedAt = *task.CompletedAt
		}
		out.Tasks = append(out.Tasks, ts)
	}
	return out
}

func writeSummary(w io.Writer, format OutputFormat, sim *mission.Simulation, stats map[string]int) error {
	summary := summarize(sim, stats)
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Seed: %d\n\n", summary.Seed)
	fmt.Fprintln(tw, "ID\tTARGET\tPRIORITY\tSTATUS\tHOPS\tCORRECTED\tBLOCKED\tDELAY\tDESCRIPTION")
	for _, t := range summary.Tasks {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%d\t%d\t%d\t%s\t%s\n",
			t.ID, t.Target, t.Priority, t.Status, t.Hops, t.Corrected, t.Blocked, t.Delay, t.Description)
	}
	fmt.Fprintln(tw)
	for _, st := range model.AllTaskStatuses {
		fmt.Fprintf(tw, "%s:\t%d\n", st, stats[st.String()])
	}
	return tw.Flush()
}

func serveMetrics(addr string, collector *observability.MissionCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Error(err))
		}
	}()

	log.Info(context.Background(), "metrics server listening", logging.String("addr", addr))
	return srv
}

func shutdownServer(srv *http.Server, log logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn(ctx, "metrics server shutdown", logging.Error(err))
	}
}
