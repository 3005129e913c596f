package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/salesbot/internal/config"
	"github.com/MikeSquared-Agency/salesbot/internal/extractor"
	"github.com/MikeSquared-Agency/salesbot/internal/llm"
)

var (
	cfg      config.Config
	logger   *slog.Logger
	provider string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "briefctl",
	Short: "Run the briefing pipeline locally",
	Long: "Classifies, extracts, validates and renders sales briefings without the chat surfaces.\n" +
		"The briefing is read from the arguments or, when none are given, from stdin.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if provider != "" {
			cfg.LLMProvider = provider
		}
		lvl := slog.LevelWarn
		if verbose {
			lvl = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "llm provider (openai|anthropic), overrides LLM_PROVIDER")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readBriefing joins the arguments as lines, or reads stdin when there are none.
func readBriefing(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, "\n"), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no briefing given")
	}
	return text, nil
}

func newExtractor() (*extractor.Extractor, error) {
	apiKey, model := cfg.LLMCredentials()
	completer, err := llm.NewProvider(cfg.LLMProvider, apiKey, model)
	if err != nil {
		return nil, err
	}
	return extractor.New(completer, cfg.LLMTimeout, logger), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
