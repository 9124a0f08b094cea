package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/rescue-mission-sim/core"
	"github.com/signalsfoundry/rescue-mission-sim/internal/logging"
	"github.com/signalsfoundry/rescue-mission-sim/internal/mission"
)

var characterizeFlags struct {
	trials int
}

var characterizeCmd = &cobra.Command{
	Use:   "characterize",
	Short: "Report hazard statistics over repeated regeneration",
	Long: `Regenerate obstacles and delays on a scratch hazard field and report
the running means of obstacle count, delayed edges and total delay, plus the
largest delay seen.`,
	Args: cobra.NoArgs,
	RunE: runCharacterize,
}

func init() {
	characterizeCmd.Flags().IntVar(&characterizeFlags.trials, "trials", 0, "Number of regenerations; overrides hazards.characterize_trials when set")
}

type characterizeSummary struct {
	Seed uint64 `json:"seed"`
	core.Characterization
}

func runCharacterize(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	cfg, err := loadMissionConfig(cmd)
	if err != nil {
		return err
	}
	trials := cfg.Hazards.CharacterizeTrials
	if cmd.Flags().Changed("trials") {
		trials = characterizeFlags.trials
	}
	if trials <= 0 {
		return errors.New("characterize needs at least one trial")
	}

	ctx, log := logging.WithRunLogger(cmd.Context(), newLogger(cmd))
	res, seed := mission.CharacterizeHazards(cfg, trials)
	log.Info(ctx, "hazards characterized",
		logging.Any("seed", seed),
		logging.Int("trials", res.Trials),
		logging.Float("mean_obstacles", res.MeanObstacles),
		logging.Float("mean_delayed_edges", res.MeanDelayedEdges),
		logging.Float("mean_total_delay", res.MeanTotalDelay),
		logging.Float("max_delay", res.MaxDelay),
	)

	return writeCharacterization(cmd.OutOrStdout(), format, characterizeSummary{Seed: seed, Characterization: res})
}

func writeCharacterization(w io.Writer, format OutputFormat, s characterizeSummary) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Seed:\t%d\n", s.Seed)
	fmt.Fprintf(tw, "Trials:\t%d\n", s.Trials)
	fmt.Fprintf(tw, "Mean obstacles:\t%.3f\n", s.MeanObstacles)
	fmt.Fprintf(tw, "Mean delayed edges:\t%.3f\n", s.MeanDelayedEdges)
	fmt.Fprintf(tw, "Mean total delay:\t%.3f\n", s.MeanTotalDelay)
	fmt.Fprintf(tw, "Max delay:\t%.3f\n", s.MaxDelay)
	return tw.Flush()
}
