package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/evalops/deployverify/internal/config"
	"github.com/evalops/deployverify/internal/dispatch"
	"github.com/evalops/deployverify/internal/metrics"
	"github.com/evalops/deployverify/internal/models"
	"github.com/evalops/deployverify/internal/provider"
	"github.com/evalops/deployverify/internal/results"
	"github.com/evalops/deployverify/internal/suite"
	"github.com/evalops/deployverify/internal/validators"
)

var (
	flagModel       string
	flagBaseURL     string
	flagAPIKey      string
	flagConcurrency int
	flagTimeout     int
	flagRetries     int
	flagExtraBody   string
	flagOutput      string
	flagSummary     string
	flagIncremental bool
	flagSpecPath    string
	flagVerbose     bool
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <suite.jsonl>",
		Short: "Replay a verification suite against a provider",
		Long: `Run a verification suite from a JSONL file.

Each line must be a complete chat-completion request body (messages, tools,
decoding overrides) plus optional expected-behavior fields: check_type,
expect_tool_call, expect_language.`,
		Args: cobra.ExactArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVar(&flagModel, "model", "", "Model identifier sent with every request (required unless set in --spec)")
	cmd.Flags().StringVar(&flagBaseURL, "base-url", "", "Provider API base endpoint (required unless set in --spec)")
	cmd.Flags().StringVar(&flagAPIKey, "api-key", "", "API key (falls back to "+config.EnvAPIKey+")")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", config.DefaultConcurrency, "Maximum concurrent requests")
	cmd.Flags().IntVar(&flagTimeout, "timeout", config.DefaultTimeoutSec, "Per-attempt timeout in seconds")
	cmd.Flags().IntVar(&flagRetries, "retries", config.DefaultRetries, "Per-request retry budget after the first attempt")
	cmd.Flags().StringVar(&flagExtraBody, "extra-body", "", "Extra JSON merged into every request body")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", config.DefaultOutputPath, "Path for detailed per-case results (JSONL)")
	cmd.Flags().StringVar(&flagSummary, "summary", config.DefaultSummaryPath, "Path for the aggregated summary (JSON)")
	cmd.Flags().BoolVar(&flagIncremental, "incremental", false, "Re-execute only failed or new cases, keeping prior successes")
	cmd.Flags().StringVar(&flagSpecPath, "spec", "", "Optional YAML run spec (flags override it)")
	cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose logging")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	log := newLogger(flagVerbose)

	cfg, spec, err := buildConfig(cmd, args[0])
	if err != nil {
		return err
	}

	registry, err := buildRegistry(spec, log)
	if err != nil {
		return err
	}

	cases, err := suite.Load(cfg.SuitePath, cfg.Model, log)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return fmt.Errorf("no usable test cases in %s", cfg.SuitePath)
	}

	work := cases
	var base []*models.QueryResult
	if cfg.Incremental {
		prior, err := results.Read(cfg.OutputPath)
		if err != nil {
			return err
		}
		work, base = results.Plan(prior, cases)
		log.WithFields(logrus.Fields{
			"kept":       len(base),
			"to_execute": len(work),
		}).Info("incremental plan")
	}

	client := provider.NewClient(provider.ClientConfig{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		ExtraBody: cfg.ExtraBody,
	})
	caller := provider.NewCaller(client, cfg.Retries, time.Duration(cfg.TimeoutSec)*time.Second, nil, log)
	dispatcher := dispatch.New(caller, registry, cfg.Concurrency, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"model":       cfg.Model,
		"cases":       len(work),
		"concurrency": cfg.Concurrency,
	}).Info("starting verification run")

	fresh := dispatcher.Run(ctx, work)
	if ctx.Err() != nil {
		log.WithField("completed", len(fresh)).Warn("run cancelled; partial results will be saved")
	}

	final := results.Merge(base, fresh)
	if err := results.Write(cfg.OutputPath, final); err != nil {
		return err
	}

	summary := metrics.Compute(cfg.Model, final)
	if err := results.WriteSummary(cfg.SummaryPath, summary); err != nil {
		return err
	}

	printSummary(summary, cfg)

	if summary.Succeeded < summary.TotalCases {
		return &CaseFailureError{
			Message: fmt.Sprintf("%d of %d cases did not succeed", summary.TotalCases-summary.Succeeded, summary.TotalCases),
		}
	}
	return nil
}

// buildConfig resolves the run spec file, flags, and defaults into a
// validated configuration. Flags the user actually set win over the spec.
func buildConfig(cmd *cobra.Command, suitePath string) (*config.Config, *config.RunSpec, error) {
	cfg := &config.Config{
		Model:       flagModel,
		BaseURL:     flagBaseURL,
		APIKey:      flagAPIKey,
		SuitePath:   suitePath,
		OutputPath:  flagOutput,
		SummaryPath: flagSummary,
		Incremental: flagIncremental,
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = flagConcurrency
	}
	if cmd.Flags().Changed("timeout") {
		cfg.TimeoutSec = flagTimeout
	}
	if cmd.Flags().Changed("retries") {
		cfg.Retries = flagRetries
	} else {
		cfg.Retries = -1 // let spec or default decide
	}
	if err := cfg.ParseExtraBody(flagExtraBody); err != nil {
		return nil, nil, err
	}

	var spec *config.RunSpec
	if flagSpecPath != "" {
		loaded, err := config.LoadRunSpec(flagSpecPath)
		if err != nil {
			return nil, nil, err
		}
		spec = loaded
		cfg.ApplySpec(spec)
	}
	if cfg.Retries < 0 {
		cfg.Retries = config.DefaultRetries
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, spec, nil
}

// buildRegistry starts from the standard validator set and applies any
// overrides declared in the run spec.
func buildRegistry(spec *config.RunSpec, log logrus.FieldLogger) (*validators.Registry, error) {
	registry := validators.DefaultRegistry(log)
	if spec == nil {
		return registry, nil
	}
	for _, cs := range spec.Validators {
		v, err := validators.Create(cs.Tag, cs.Params)
		if err != nil {
			return nil, err
		}
		registry.Register(cs.Tag, v)
	}
	return registry, nil
}

func printSummary(s *metrics.Summary, cfg *config.Config) {
	fmt.Println()
	fmt.Printf("Model:            %s\n", s.Model)
	fmt.Printf("Cases:            %d total, %d succeeded, %d exhausted retries, %d internal errors\n",
		s.TotalCases, s.Succeeded, s.ExhaustedRetries, s.InternalErrors)
	fmt.Printf("Attempts:         %d\n", s.TotalAttempts)
	fmt.Println()
	printRatio("Query success rate", s.QuerySuccessRate)
	printRatio("Finish tool-calls rate", s.FinishToolCallsRate)
	printF1(s.TriggerSimilarity)
	printRatio("Tool-calls accuracy", s.ToolCallsAccuracy)
	printRatio("Response success rate", s.ResponseSuccessRate)
	printRatio("Language following", s.LanguageFollowingSuccessRate)
	fmt.Println()
	fmt.Printf("Results saved to: %s\n", cfg.OutputPath)
	fmt.Printf("Summary saved to: %s\n", cfg.SummaryPath)
}

func printRatio(name string, r metrics.Ratio) {
	if !r.Applicable() {
		fmt.Printf("%-24s n/a (0 checked)\n", name+":")
		return
	}
	fmt.Printf("%-24s %.2f%% (%d/%d)\n", name+":", *r.Value*100, r.Numerator, r.Denominator)
}

func printF1(t metrics.TriggerSimilarity) {
	if t.F1 == nil {
		fmt.Printf("%-24s n/a (TP=%d FP=%d FN=%d)\n", "Trigger similarity F1:", t.TP, t.FP, t.FN)
		return
	}
	fmt.Printf("%-24s %.4f (P=%.4f R=%.4f, TP=%d FP=%d FN=%d)\n",
		"Trigger similarity F1:", *t.F1, *t.Precision, *t.Recall, t.TP, t.FP, t.FN)
}
