package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"NarrativeScout/backend/go/internal/analysis"
	"NarrativeScout/backend/go/internal/models"
	"NarrativeScout/backend/go/internal/report"
	"NarrativeScout/backend/go/internal/sources"
	transport "NarrativeScout/backend/go/pkg/http"
	"NarrativeScout/backend/go/pkg/logger"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var xlsxPath string

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Collect signals only (no LLM analysis) and print them as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log := logger.New("narrative-cli", uuid.NewString())
		hc := transport.NewClient(cfg.HTTP, log)
		collectors, err := sources.FromConfig(cfg, hc, log)
		if err != nil {
			return err
		}

		coll, err := sources.NewOrchestrator(cfg.Collector.TimeoutDuration(), log, collectors...).Collect(cmd.Context())
		if err != nil && (!errors.Is(err, sources.ErrNoSignals) || len(coll.Failed()) == len(coll.Outcomes)) {
			return err
		}

		if err := printSignals(cmd.OutOrStdout(), coll.Signals); err != nil {
			return err
		}
		if xlsxPath != "" {
			if err := report.WriteSignalsWorkbook(xlsxPath, coll.Signals, analysis.Aggregate(coll.Signals)); err != nil {
				return err
			}
			log.WithField("path", xlsxPath).Info("signals workbook written")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signalsCmd)
	signalsCmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write signals and category groups to an .xlsx workbook")
}

func printSignals(w io.Writer, signals []models.Signal) error {
	if signals == nil {
		signals = []models.Signal{}
	}
	data, err := json.MarshalIndent(signals, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize signals: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
