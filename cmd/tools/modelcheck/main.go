package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/panelroom/backend/internal/config"
	"github.com/zhouzirui/panelroom/backend/internal/service/ai"
)

var (
	timeout   time.Duration
	modelList string
	stopFirst bool
)

var rootCmd = &cobra.Command{
	Use:   "modelcheck",
	Short: "Probe the configured model hierarchy",
	Long: `Sends the probe prompt to every model in AI_MODEL_HIERARCHY (or --models)
and reports which ones answer. Exits non-zero when no model works.`,
	SilenceUsage: true,
	RunE:         runModelCheck,
}

func init() {
	rootCmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "每个模型的探测超时")
	rootCmd.Flags().StringVar(&modelList, "models", "", "逗号分隔的模型列表，覆盖配置")
	rootCmd.Flags().BoolVar(&stopFirst, "first", false, "stop at the first working model")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type probeResult struct {
	Model   string
	Reply   string
	Elapsed time.Duration
	Err     error
}

func runModelCheck(cmd *cobra.Command, _ []string) error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("配置加载失败: %w", err)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()
	if envErr != nil {
		logger.Debug("no .env file loaded", zap.Error(envErr))
	}

	models := cfg.AI.Models
	if modelList != "" {
		models = nil
		for _, m := range strings.Split(modelList, ",") {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
	}
	if len(models) == 0 {
		return errors.New("no models to probe; set AI_MODEL_HIERARCHY or --models")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	backend, err := cfg.AI.NewBackend(ctx)
	if err != nil {
		return fmt.Errorf("build %s backend: %w", cfg.AI.Provider, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "provider: %s (%s)\n", cfg.AI.Provider, backend.Name())

	working := 0
	for _, model := range models {
		res := probeModel(ctx, backend, model, timeout)
		if res.Err != nil {
			fmt.Fprintf(out, "  FAIL  %-32s %6s  %v\n", res.Model, res.Elapsed.Round(time.Millisecond), res.Err)
			logger.Debug("model probe failed", zap.String("model", model), zap.Error(res.Err))
			continue
		}
		working++
		fmt.Fprintf(out, "  OK    %-32s %6s  %q\n", res.Model, res.Elapsed.Round(time.Millisecond), res.Reply)
		if stopFirst {
			break
		}
	}

	if working == 0 {
		return fmt.Errorf("none of %d models responded", len(models))
	}
	fmt.Fprintf(out, "%d model(s) working\n", working)
	return nil
}

func probeModel(ctx context.Context, backend ai.Backend, model string, timeout time.Duration) probeResult {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	text, err := backend.Generate(callCtx, model, ai.ProbePrompt)
	res := probeResult{Model: model, Elapsed: time.Since(start), Err: err}
	if err == nil {
		res.Reply = ai.Sanitize(text)
		if res.Reply == "" {
			res.Err = ai.ErrEmptyResponse
		}
	}
	return res
}
