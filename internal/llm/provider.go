package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/integridade/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize generates a narrative of the report in strict reference mode
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for LLM summarization
type SummarizeRequest struct {
	Report model.Report

	// References is the STRICT allowlist of alert references the LLM may cite
	References []Reference

	// Prompt overrides the default prompt when set
	Prompt string

	Model     string
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	Summary    string
	CitedRefs  []string // Reference ids the text actually cites
	Model      string
	TokensUsed int
}

// Reference is one alert the narrative may cite as [R<n>]
type Reference struct {
	ID    string
	Alert model.Alert
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  int // seconds

	// StrictEvidence rejects output citing unknown references (should always be true)
	StrictEvidence bool

	MaxTokens int

	// Proxy settings
	Proxy model.ProxyConfig
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:       "", // Disabled by default
		Timeout:        30,
		StrictEvidence: true,
		MaxTokens:      1000,
	}
}

// maxReferences caps how many alerts are offered to the model
const maxReferences = 20

// References numbers the highest-scored alerts of the report, detector by
// detector, so the narrative can cite them
func References(report model.Report) []Reference {
	var refs []Reference
	for _, d := range report.Detectors {
		for i, a := range d.Alerts {
			if i >= 5 || len(refs) >= maxReferences {
				break
			}
			refs = append(refs, Reference{ID: fmt.Sprintf("R%d", len(refs)+1), Alert: a})
		}
	}
	return refs
}

// BuildPrompt constructs the default prompt in strict reference mode
func BuildPrompt(report model.Report, refs []Reference) string {
	var b strings.Builder
	s := report.Summary

	fmt.Fprintf(&b, `You are summarizing a procurement integrity report. The report surfaces STATISTICAL SIGNALS in public contract data - it NEVER establishes wrongdoing.

CRITICAL RULES:
1. You MUST ONLY cite alerts from this list, using their bracketed id (e.g. [R1]):
%s

2. DO NOT name entities, suppliers or amounts that are not in this list.
3. If the signals are weak or few, say so explicitly.
4. Describe patterns, not guilt. Use phrases like:
   - "The data shows a concentration of..."
   - "This pattern is consistent with..., and warrants review"
5. Never say an entity committed fraud or acted illegally.

Dataset:
- Source: %s
- Contracts: %d
- Total value: %.2f EUR
- Alerts: %d
`, joinReferences(refs), report.Source, s.Records, s.TotalValue, report.AlertCount())

	if spikes := report.Months.Spikes(); len(spikes) > 0 {
		fmt.Fprintf(&b, "- Months above 150%% of the monthly mean: %v\n", spikes)
	}

	b.WriteString("\nDetectors:\n")
	for _, d := range report.Detectors {
		fmt.Fprintf(&b, "- %s: %s, %d alert(s)\n", d.Name, d.Status, len(d.Alerts))
	}

	b.WriteString("\nProvide a 4-6 sentence summary of the strongest signals, citing their ids.")
	return b.String()
}

// Helper functions

func joinReferences(refs []Reference) string {
	if len(refs) == 0 {
		return "(No alerts available)"
	}
	var b strings.Builder
	for _, r := range refs {
		fmt.Fprintf(&b, "\n- [%s] %s, severity %s (score %d): %s", r.ID, r.Alert.Kind, r.Alert.Severity, r.Alert.Score, r.Alert.Description)
	}
	return b.String()
}

var refPattern = regexp.MustCompile(`\[(R\d+)\]`)

// extractRefs returns the distinct reference ids cited in text, in order
func extractRefs(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range refPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// verifyRefs enforces strict reference mode
func verifyRefs(cited []string, allowed []Reference) error {
	ids := make(map[string]bool, len(allowed))
	for _, r := range allowed {
		ids[r.ID] = true
	}
	for _, c := range cited {
		if !ids[c] {
			return fmt.Errorf("CITATION LEAK: LLM cited unknown reference: %s", c)
		}
	}
	return nil
}

const systemPrompt = "You are a careful analyst who summarizes procurement integrity reports with strict adherence to the cited alerts."
