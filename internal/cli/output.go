// Package cli provides the interactive chat loop and answer formatting for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/tanya/internal/models"
)

// OutputFormat is the format for answer output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --format flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// WriteAnswer writes the answer and at most maxSources sources to w.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat, maxSources int) error {
	out := &models.Answer{Text: answer.Text, Sources: answer.TopSources(maxSources)}
	if out.Sources == nil {
		out.Sources = []string{}
	}
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		writeAnswerText(w, out)
		return nil
	}
}

func writeAnswerText(w io.Writer, answer *models.Answer) {
	fmt.Fprintf(w, "\nAssistant:\n%s\n", answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, s := range answer.Sources {
			fmt.Fprintf(w, "- %s\n", s)
		}
	}
}
