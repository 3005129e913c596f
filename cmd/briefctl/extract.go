package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/salesbot/internal/classifier"
	"github.com/MikeSquared-Agency/salesbot/internal/extractor"
	"github.com/MikeSquared-Agency/salesbot/internal/validator"
)

var (
	modeFlag   string
	choiceFlag string
)

// extract classifies text, or uses --mode, and runs the extractor.
func extract(ctx context.Context, text string) (*extractor.Result, error) {
	mode := classifier.Classify(text)
	if modeFlag != "" {
		m, err := classifier.ParseMode(modeFlag)
		if err != nil {
			return nil, err
		}
		mode = m
	}
	ext, err := newExtractor()
	if err != nil {
		return nil, err
	}
	return ext.Extract(ctx, text, mode), nil
}

// validate extracts and validates text, applying --choice to an ambiguous
// position.
func validate(ctx context.Context, text string) (validator.Validation, error) {
	res, err := extract(ctx, text)
	if err != nil {
		return validator.Validation{}, err
	}
	v := validator.Validate(*res)
	if _, ambiguous := v.Ambiguous[extractor.FieldPosition]; ambiguous && choiceFlag != "" {
		v = validator.Validate(validator.ApplyChoice(v.Extraction, extractor.FieldPosition, choiceFlag))
	}
	return v, nil
}

var extractCmd = &cobra.Command{
	Use:   "extract [briefing...]",
	Short: "Extract company, location and position from a briefing",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readBriefing(cmd, args)
		if err != nil {
			return err
		}
		res, err := extract(cmd.Context(), text)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [briefing...]",
	Short: "Extract and validate a briefing, printing the reply",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readBriefing(cmd, args)
		if err != nil {
			return err
		}
		v, err := validate(cmd.Context(), text)
		if err != nil {
			return err
		}
		return printJSON(cmd, v)
	},
}

func init() {
	for _, c := range []*cobra.Command{extractCmd, validateCmd, promptCmd} {
		c.Flags().StringVar(&modeFlag, "mode", "", "force input mode (structured|minimal|rich)")
	}
	for _, c := range []*cobra.Command{validateCmd, promptCmd} {
		c.Flags().StringVar(&choiceFlag, "choice", "", "answer to the position question (1-4)")
	}
	rootCmd.AddCommand(extractCmd, validateCmd)
}
