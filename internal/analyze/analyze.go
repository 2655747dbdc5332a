// Package analyze turns chart changes and industry news into a structured
// market analysis, with data-only fallbacks when no model is available.
package analyze

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/chartpulse/internal/chart"
	"github.com/TobiSchelling/chartpulse/internal/collect"
	"github.com/TobiSchelling/chartpulse/internal/llm"
)

const (
	maxChangeLines = 30
	maxNewsItems   = 15

	noChangesText = "No significant chart changes today."
	noModelText   = "AI analysis skipped: no language model is configured."
)

const analystSystem = "You are a mobile games market analyst with ten years of experience. " +
	"Give practical, data-grounded analysis. Output valid JSON only, with no other text."

// Highlight is one game the analysis calls out.
type Highlight struct {
	Game     string `json:"game"`
	Change   string `json:"change"`
	Region   string `json:"region"`
	Store    string `json:"store"`
	Analysis string `json:"analysis"`
}

// Analysis is the structured daily analysis.
type Analysis struct {
	Rising     []Highlight `json:"rising"`
	Falling    []Highlight `json:"falling"`
	NewEntries []Highlight `json:"new_entries"`
	Regions    string      `json:"regions"`
	Categories string      `json:"categories"`
	Industry   string      `json:"industry"`
	RawText    string      `json:"raw_text,omitempty"`
}

// HasHighlights reports whether any game was called out.
func (a *Analysis) HasHighlights() bool {
	return len(a.Rising)+len(a.Falling)+len(a.NewEntries) > 0
}

func emptyAnalysis() *Analysis {
	return &Analysis{
		Rising:     []Highlight{},
		Falling:    []Highlight{},
		NewEntries: []Highlight{},
	}
}

func fallback(text string) *Analysis {
	a := emptyAnalysis()
	if text == "" {
		text = "Analysis generation failed."
	}
	a.Regions = text
	a.RawText = text
	return a
}

// Analyzer generates analyses through an LLM provider. A nil provider is
// allowed and yields the fallback output.
type Analyzer struct {
	provider  llm.Provider
	maxTokens int
	logger    *zap.Logger
}

// New creates an Analyzer.
func New(provider llm.Provider, maxTokens int, logger *zap.Logger) *Analyzer {
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{provider: provider, maxTokens: maxTokens, logger: logger}
}

// Available reports whether a model will be called.
func (a *Analyzer) Available() bool {
	return a.provider != nil
}

// ChangeLine renders one change for a prompt.
func ChangeLine(c chart.Change) string {
	dev := ""
	if c.Developer != "" {
		dev = " (" + c.Developer + ")"
	}
	where := fmt.Sprintf("%s/%s", c.DisplayRegion(), c.Store.Label())

	switch c.ChangeType {
	case chart.NewEntry:
		return fmt.Sprintf("- %s: %q%s new entry at #%d", where, c.Name, dev, chart.IntValue(c.RankToday))
	case chart.Dropped:
		return fmt.Sprintf("- %s: %q%s dropped out (was #%d)", where, c.Name, dev, chart.IntValue(c.RankYesterday))
	default:
		return fmt.Sprintf("- %s: %q%s %s %d places (#%d -> #%d)", where, c.Name, dev,
			strings.ToLower(c.ChangeType.Label()), c.Magnitude(), chart.IntValue(c.RankYesterday), chart.IntValue(c.RankToday))
	}
}

func buildChangesPrompt(date string, changes []chart.Change, news []collect.NewsEntry) string {
	if len(changes) > maxChangeLines {
		changes = changes[:maxChangeLines]
	}
	lines := make([]string, 0, len(changes))
	for _, c := range changes {
		lines = append(lines, ChangeLine(c))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Using the mobile game chart changes for %s and the industry news below, write a structured analysis.\n\n", date)
	b.WriteString("**Chart changes today:**\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")
	if len(news) > 0 {
		b.WriteString("\n**Recent industry news (for context):**\n")
		b.WriteString(collect.FormatForPrompt(news, maxNewsItems))
		b.WriteString("\n")
	}
	b.WriteString(`
---

Output exactly this JSON shape and nothing else:

{
  "rising": [{"game": "name", "change": "up 50 (#60 -> #10)", "region": "United States", "store": "App Store", "analysis": "likely cause, under 50 words"}],
  "falling": [{"game": "name", "change": "down 30 (#5 -> #35)", "region": "United States", "store": "App Store", "analysis": "likely cause"}],
  "new_entries": [{"game": "name", "change": "new entry #1", "region": "United States", "store": "App Store", "analysis": "why it matters"}],
  "regions": "• point one\n\n• point two",
  "categories": "• point one\n\n• point two",
  "industry": "• point one (empty string when no news is relevant)"
}

Rules:
1. Pick the 2-3 most significant games for each of rising, falling and new_entries.
2. regions, categories and industry are 2-3 bullet points each, starting with "•" and separated by a blank line.
3. regions compares what the regions share and where they differ; categories names the genres moving up or down.
4. JSON only.
`)
	return b.String()
}

// AnalyzeChanges asks the model for a structured analysis of the top changes.
// It never fails: no changes, no model, a model error or an unparsable reply
// each produce a usable fallback.
func (a *Analyzer) AnalyzeChanges(ctx context.Context, date string, changes []chart.Change, news []collect.NewsEntry) *Analysis {
	if len(changes) == 0 {
		out := emptyAnalysis()
		out.Regions = noChangesText
		out.Categories = noChangesText
		return out
	}
	if a.provider == nil {
		return fallback(noModelText)
	}

	reply, err := a.provider.Generate(ctx, analystSystem, buildChangesPrompt(date, changes, news), a.maxTokens)
	if err != nil {
		a.logger.Warn("analysis generation failed", zap.Error(err))
		return fallback(fmt.Sprintf("AI analysis failed: %v", err))
	}

	out := emptyAnalysis()
	if err := llm.Decode(reply, out); err != nil {
		a.logger.Warn("analysis reply is not JSON, using raw text", zap.Error(err))
		return fallback(reply)
	}
	if out.Rising == nil {
		out.Rising = []Highlight{}
	}
	if out.Falling == nil {
		out.Falling = []Highlight{}
	}
	if out.NewEntries == nil {
		out.NewEntries = []Highlight{}
	}
	out.RawText = ""
	return out
}

// Markdown renders the analysis for reports and chat.
func (a *Analysis) Markdown() string {
	if a.RawText != "" && !a.HasHighlights() {
		return a.RawText
	}

	var b strings.Builder
	b.WriteString("## Change analysis (vs. yesterday)\n\n")
	section := func(title string, hs []Highlight) {
		if len(hs) == 0 {
			return
		}
		fmt.Fprintf(&b, "### %s\n", title)
		for _, h := range hs {
			fmt.Fprintf(&b, "- **%s** %s (%s · %s)\n", h.Game, h.Change, h.Region, h.Store)
			if h.Analysis != "" {
				fmt.Fprintf(&b, "  %s\n", h.Analysis)
			}
		}
		b.WriteString("\n")
	}
	section("📈 Rising", a.Rising)
	section("📉 Falling", a.Falling)
	section("🆕 New entries", a.NewEntries)

	text := func(title, body string) {
		if body == "" {
			return
		}
		fmt.Fprintf(&b, "### %s\n%s\n\n", title, body)
	}
	text("Regional trends", a.Regions)
	text("Category moves", a.Categories)
	text("Industry news", a.Industry)

	return strings.TrimRight(b.String(), "\n")
}
