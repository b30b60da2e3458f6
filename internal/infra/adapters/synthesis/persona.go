package synthesis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"persona-research/internal/domain"
	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/adapter"
	"persona-research/internal/infra/metrics"
)

// Compile-time check
var _ adapter.Synthesizer = (*PersonaSynthesizer)(nil)

const systemPrompt = `You are a market researcher. From the evidence below, write one customer persona in Markdown.
Cover: demographics, goals, pain points, objections, buying triggers and the language customers use.
Only use facts present in the evidence. If a section has no evidence, say so instead of guessing.`

// TokenCounter counts tokens for budget decisions.
type TokenCounter interface {
	Count(model, text string) int
}

type Options struct {
	Model          string
	MaxInputTokens int
	Timeout        time.Duration
}

// PersonaSynthesizer turns cached collector results into a persona document
// through a chat model.
type PersonaSynthesizer struct {
	ai     adapter.AIServiceAdapter
	tokens TokenCounter
	opts   Options
	log    *zerolog.Logger
	now    func() time.Time
}

func NewPersonaSynthesizer(ai adapter.AIServiceAdapter, tokens TokenCounter, opts Options, logger *zerolog.Logger) *PersonaSynthesizer {
	if opts.MaxInputTokens <= 0 {
		opts.MaxInputTokens = 12000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	l := logger.With().Str("component", "persona-synthesizer").Logger()
	return &PersonaSynthesizer{ai: ai, tokens: tokens, opts: opts, log: &l, now: time.Now}
}

// Synthesize fails with domain.ErrInsufficientData when no source produced
// items, and wraps provider errors in domain.ErrSynthesisFailed.
func (s *PersonaSynthesizer) Synthesize(ctx context.Context, in model.SynthesisInput) (*model.PersonaDocument, error) {
	order := sourceOrder(in.Results)
	used := in.SourcesWithData(order)
	if len(used) == 0 {
		return nil, fmt.Errorf("job %s: %w", in.JobID, domain.ErrInsufficientData)
	}

	prompt, dropped := s.buildPrompt(in, used)
	metrics.AddPromptItemsDropped(dropped)

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	msgs := []adapter.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}
	text, usage, err := s.ai.ChatWithUsage(ctx, s.opts.Model, msgs)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %s", domain.ErrSynthesisFailed, s.opts.Timeout)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrSynthesisFailed, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty completion", domain.ErrSynthesisFailed)
	}

	quality, conf := assess(in.Results, order, used)
	s.log.Info().
		Str("job_id", in.JobID).
		Int("sources", len(used)).
		Int("dropped_items", dropped).
		Str("confidence", string(conf)).
		Msg("persona synthesized")

	return &model.PersonaDocument{
		Content:          text,
		Confidence:       conf,
		Quality:          quality,
		Model:            s.opts.Model,
		SourcesUsed:      used,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		GeneratedAt:      s.now().UTC(),
	}, nil
}

// buildPrompt takes items round-robin across sources so one large source
// cannot starve the others, stopping once the budget is spent.
func (s *PersonaSynthesizer) buildPrompt(in model.SynthesisInput, used []model.SourceKey) (string, int) {
	var head strings.Builder
	fmt.Fprintf(&head, "Keywords: %s\n", strings.Join(in.Keywords, ", "))
	if in.Website != "" {
		fmt.Fprintf(&head, "Website: %s\n", in.Website)
	}
	budget := s.opts.MaxInputTokens - s.tokens.Count(s.opts.Model, systemPrompt) - s.tokens.Count(s.opts.Model, head.String())

	lines := make(map[model.SourceKey][]string, len(used))
	total := 0
	for _, k := range used {
		total += len(in.Results[k].Items)
		budget -= s.tokens.Count(s.opts.Model, sectionTitle(k))
	}

	taken := 0
	full := false
	for i := 0; !full; i++ {
		progressed := false
		for _, k := range used {
			items := in.Results[k].Items
			if i >= len(items) {
				continue
			}
			progressed = true
			line := itemLine(items[i])
			cost := s.tokens.Count(s.opts.Model, line)
			if cost > budget {
				full = true
				break
			}
			budget -= cost
			lines[k] = append(lines[k], line)
			taken++
		}
		if !progressed {
			break
		}
	}

	var b strings.Builder
	b.WriteString(head.String())
	for _, k := range used {
		if len(lines[k]) == 0 {
			continue
		}
		b.WriteString("\n")
		b.WriteString(sectionTitle(k))
		for _, l := range lines[k] {
			b.WriteString(l)
		}
	}
	return b.String(), total - taken
}

func sectionTitle(k model.SourceKey) string {
	return "## " + string(k) + "\n"
}

func itemLine(it model.Item) string {
	var b strings.Builder
	b.WriteString("- ")
	if it.Kind != "" {
		fmt.Fprintf(&b, "[%s] ", it.Kind)
	}
	if it.Rating > 0 {
		fmt.Fprintf(&b, "(%.1f/5) ", it.Rating)
	}
	b.WriteString(strings.ReplaceAll(strings.TrimSpace(it.Text), "\n", " "))
	if it.Keyword != "" {
		fmt.Fprintf(&b, " {keyword: %s}", it.Keyword)
	}
	b.WriteString("\n")
	return b.String()
}

// sourceOrder lists collector sources in display order: core sources, then
// competitors by index. The persona slot is never an input.
func sourceOrder(results map[model.SourceKey]*model.CollectorResult) []model.SourceKey {
	order := append([]model.SourceKey(nil), model.CoreSources...)
	var comps []model.SourceKey
	for k := range results {
		if _, ok := k.CompetitorIndex(); ok {
			comps = append(comps, k)
		}
	}
	sort.Slice(comps, func(i, j int) bool {
		a, _ := comps[i].CompetitorIndex()
		b, _ := comps[j].CompetitorIndex()
		return a < b
	})
	return append(order, comps...)
}

// assess scores coverage as the share of attempted sources that produced
// data, weighting customer-voice sources above site copy.
func assess(results map[model.SourceKey]*model.CollectorResult, order, used []model.SourceKey) (float64, model.Confidence) {
	attempted := 0
	for _, k := range order {
		if results[k] != nil {
			attempted++
		}
	}
	if attempted == 0 {
		return 0, model.ConfidenceLow
	}
	voice := 0
	for _, k := range used {
		switch k {
		case model.SourceMarketplace, model.SourceDiscussion, model.SourceVideo:
			voice++
		}
	}
	quality := float64(len(used)) / float64(attempted)
	switch {
	case voice >= 2 && quality >= 0.75:
		return quality, model.ConfidenceHigh
	case voice >= 1 && quality >= 0.5:
		return quality, model.ConfidenceMedium
	default:
		return quality, model.ConfidenceLow
	}
}
