package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"NarrativeScout/backend/go/internal/llm"
	"NarrativeScout/backend/go/internal/pipeline"
	"NarrativeScout/backend/go/internal/report"
	"NarrativeScout/backend/go/internal/sinks"
	"NarrativeScout/backend/go/internal/sources"
	transport "NarrativeScout/backend/go/pkg/http"
	"NarrativeScout/backend/go/pkg/logger"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var runOpts struct {
	output   string
	provider string
	model    string
	format   string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full narrative detection pipeline and generate a report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置并应用命令行覆盖
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if runOpts.provider != "" {
			cfg.SetProvider(runOpts.provider)
		}
		if runOpts.model != "" {
			cfg.LLM.Model = runOpts.model
		}
		if runOpts.format != "" {
			cfg.Output.Format = runOpts.format
		}
		if runOpts.output != "" {
			cfg.Output.Path = runOpts.output
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.RequireLLMCredentials(); err != nil {
			return err
		}

		// 2. 初始化 Logger 和运行 ID
		runID := uuid.NewString()
		log := logger.New("narrative-cli", runID)
		log.WithPayload(map[string]interface{}{"provider": cfg.LLM.Provider, "model": cfg.LLM.Model}).
			Info("starting narrative run")

		// 3. 初始化 HTTP 客户端和采集器
		hc := transport.NewClient(cfg.HTTP, log)
		collectors, err := sources.FromConfig(cfg, hc, log)
		if err != nil {
			return err
		}
		orchestrator := sources.NewOrchestrator(cfg.Collector.TimeoutDuration(), log, collectors...)

		// 4. 初始化 LLM 客户端
		ctx := cmd.Context()
		client, err := llm.NewClient(ctx, cfg.LLM, hc)
		if err != nil {
			return fmt.Errorf("create llm client: %w", err)
		}
		gw := llm.NewGateway(client, cfg.LLM.TimeoutDuration(), log)
		defer gw.Close()

		// 5. 运行流水线
		res, err := pipeline.New(orchestrator, gw, log).Run(ctx, runID)
		if err != nil {
			return err
		}

		// 6. 渲染并写入报告
		content, err := report.Render(res.Signals, res.Narratives, res.Ideas, res.StartedAt)
		if err != nil {
			return err
		}
		if cfg.Output.Format == "markdown" {
			if content, err = report.ToMarkdown(content); err != nil {
				return err
			}
		}
		path := reportPath(cfg.Output.Path, cfg.Output.Format)
		if err := report.WriteFile(path, []byte(content)); err != nil {
			return err
		}
		log.WithField("path", path).Info("report written")

		// 7. 发布到可选的外部目标，失败不影响本次运行
		targets, err := sinks.FromConfig(cfg.Sinks, log)
		if err != nil {
			log.WithField("error", err.Error()).Warn("sinks disabled")
		} else if len(targets) > 0 {
			sinks.PublishAll(ctx, targets, sinks.NewArtifact(res, []byte(content), cfg.Output.Format, path), log)
			sinks.CloseAll(targets, log)
		}

		printSummary(cmd.OutOrStdout(), path, res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runOpts.output, "output", "o", "", "output path for the report")
	runCmd.Flags().StringVar(&runOpts.provider, "provider", "", "LLM provider override: anthropic, openai, openrouter, gemini, ollama, huggingface")
	runCmd.Flags().StringVar(&runOpts.model, "model", "", "LLM model override")
	runCmd.Flags().StringVar(&runOpts.format, "format", "", "report format: html or markdown")
}

// reportPath swaps an .html extension for .md when the report is rendered as Markdown.
func reportPath(path, format string) string {
	if format == "markdown" && strings.EqualFold(filepath.Ext(path), ".html") {
		return strings.TrimSuffix(path, filepath.Ext(path)) + ".md"
	}
	return path
}

func printSummary(w io.Writer, path string, res *pipeline.Result) {
	fmt.Fprintf(w, "Report generated: %s\n", path)
	fmt.Fprintf(w, "  %d signals from %d sources\n", len(res.Signals), res.SourceCount())
	fmt.Fprintf(w, "  %d narratives identified\n", len(res.Narratives))
	fmt.Fprintf(w, "  %d build ideas generated\n", len(res.Ideas))
	if n := len(res.Issues); n > 0 {
		fmt.Fprintf(w, "  %d data quality issues (see log)\n", n)
	}
}
