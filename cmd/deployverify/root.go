package main

import (
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deployverify",
		Short: "Verify a third-party LLM deployment against the reference behavior",
		Long: `deployverify replays a JSONL suite of chat-completion requests against a
provider's OpenAI-compatible endpoint and scores every response with
deterministic validators: tool-call schema accuracy, trigger similarity
against the reference deployment, reasoning-only detection, language
following, and repetition checks.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// A .env next to the working directory may carry the credential.
		_ = godotenv.Load()
	}

	cmd.AddCommand(newRunCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}

// newLogger creates the run logger; verbose lowers the level to debug.
func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}
