package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/salesbot/internal/prompt"
	"github.com/MikeSquared-Agency/salesbot/internal/validator"
)

var templateFlag string

type promptOutput struct {
	Prompt     string               `json:"prompt,omitempty"`
	Validation validator.Validation `json:"validation"`
}

var promptCmd = &cobra.Command{
	Use:   "prompt [briefing...]",
	Short: "Render the task prompt for a valid briefing",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readBriefing(cmd, args)
		if err != nil {
			return err
		}

		path := templateFlag
		if path == "" {
			path = cfg.PromptTemplateFile
		}
		tpl := prompt.Template{}
		if path != "" {
			if tpl, err = prompt.LoadTemplate(path); err != nil {
				return err
			}
		}

		v, err := validate(cmd.Context(), text)
		if err != nil {
			return err
		}
		out := promptOutput{Validation: v}
		if v.Valid {
			out.Prompt = prompt.NewBuilder(tpl).Build(v.Extraction)
		}
		if err := printJSON(cmd, out); err != nil {
			return err
		}
		if !v.Valid {
			return fmt.Errorf("briefing incomplete")
		}
		return nil
	},
}

func init() {
	promptCmd.Flags().StringVar(&templateFlag, "template", "", "YAML prompt template, overrides PROMPT_TEMPLATE_FILE")
	rootCmd.AddCommand(promptCmd)
}
