package main

import (
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/salesbot/internal/classifier"
)

type classifyOutput struct {
	Mode       classifier.Mode `json:"mode"`
	Indicators []string        `json:"indicators"`
	Lines      int             `json:"lines"`
}

var classifyCmd = &cobra.Command{
	Use:   "classify [briefing...]",
	Short: "Show the input mode of a briefing",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readBriefing(cmd, args)
		if err != nil {
			return err
		}
		ind := classifier.Indicators(text)
		if ind == nil {
			ind = []string{}
		}
		return printJSON(cmd, classifyOutput{
			Mode:       classifier.Classify(text),
			Indicators: ind,
			Lines:      len(classifier.Lines(text)),
		})
	},
}

func init() { rootCmd.AddCommand(classifyCmd) }
