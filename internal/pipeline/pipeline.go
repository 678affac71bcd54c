// Package pipeline runs one subscriber's weekly brief end to end:
// policy resolution, sectioned search pooling, AI synthesis, opportunity
// aggregation and history bookkeeping.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"market-briefer/internal/ai"
	"market-briefer/internal/metrics"
	"market-briefer/internal/model"
	"market-briefer/internal/policy"
	"market-briefer/internal/search"
)

// HistoryStore is the rolling dedup state for one subscriber.
type HistoryStore interface {
	RecentURLKeys(ctx context.Context, subscriberID string) (map[string]struct{}, error)
	RecentTopics(ctx context.Context, subscriberID string) ([]string, error)
	MarkURLKeysUsed(ctx context.Context, subscriberID string, keys []string) error
	MarkTopicsUsed(ctx context.Context, subscriberID string, topics []string) error
	SaveBrief(ctx context.Context, brief *model.Brief) error
}

// Aggregator is the opportunity grouping stage.
type Aggregator interface {
	Aggregate(
		ctx context.Context,
		sections map[model.Section]model.SectionSynthesis,
		searchResults map[model.Section][]model.SearchResultItem,
		usedRecent map[string]struct{},
	) (map[model.Category]*model.OpportunityGroup, []string)
}

// Deps are the pipeline collaborators, injected so tests can fake each
// stage independently.
type Deps struct {
	Fetcher     *search.Fetcher
	Synthesizer ai.Synthesizer
	Aggregator  Aggregator
	History     HistoryStore
	Logger      *slog.Logger
	Now         func() time.Time
}

type Pipeline struct {
	deps Deps
	log  *slog.Logger
}

func New(deps Deps) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{deps: deps, log: log}
}

// Run produces one brief for the subscriber. Sections are processed
// strictly in pipeline order: later sections dedup against earlier
// selections, and the audience section borrows market and trend items.
func (p *Pipeline) Run(ctx context.Context, profile model.Profile) (*model.Brief, error) {
	start := p.deps.Now()
	runID := uuid.NewString()
	log := p.log.With("run_id", runID, "subscriber", profile.ID)

	decision := policy.Resolve(profile)
	log.Info("pipeline: policy resolved",
		"policy", decision.Policy.Key, "source", decision.Source, "reason", decision.Reason)

	usedRecent, err := p.deps.History.RecentURLKeys(ctx, profile.ID)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load recent url keys: %w", err)
	}
	recentTopics, err := p.deps.History.RecentTopics(ctx, profile.ID)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load recent topics: %w", err)
	}

	queries := BuildSectionQueries(profile, start)
	usedThisRun := map[string]struct{}{}
	searchResults := map[model.Section][]model.SearchResultItem{}
	syntheses := map[model.Section]model.SectionSynthesis{}

	// Search phase: sections fetch in the fixed order so later sections
	// dedup against earlier selections.
	for _, section := range model.PipelineOrder {
		res := p.deps.Fetcher.FetchSection(
			ctx, section, queries[section], decision.Policy, profile, usedRecent, usedThisRun)
		searchResults[section] = res.Items
	}

	// Synthesis phase, after all searches: the audience section borrows
	// market and trend hits, which exist by now regardless of order.
	for _, section := range model.PipelineOrder {
		req := ai.SectionRequest{
			Section:        section,
			Query:          queries[section],
			Items:          searchResults[section],
			Profile:        profile,
			ExcludedTopics: recentTopics,
		}
		if section == model.SectionAudience {
			req.Borrowed = append(req.Borrowed, searchResults[model.SectionMarket]...)
			req.Borrowed = append(req.Borrowed, searchResults[model.SectionTrends]...)
		}

		syn, err := p.deps.Synthesizer.SynthesizeSection(ctx, req)
		if err != nil {
			// One broken section degrades to empty rather than killing
			// the whole brief.
			log.Error("pipeline: section synthesis failed", "section", section, "err", err)
			syn = model.SectionSynthesis{}
		}
		syntheses[section] = syn
	}

	groups, usedKeys := p.deps.Aggregator.Aggregate(ctx, syntheses, searchResults, usedRecent)

	brief := &model.Brief{
		RunID:        runID,
		SubscriberID: profile.ID,
		PolicyKey:    decision.Policy.Key,
		GeneratedAt:  start,
		Groups:       groups,
		UsedURLKeys:  usedKeys,
	}

	if err := p.deps.History.MarkURLKeysUsed(ctx, profile.ID, usedKeys); err != nil {
		log.Error("pipeline: mark url keys failed", "err", err)
	}
	if topics := syntheses[model.SectionTrends].StringList("temas_populares"); len(topics) > 0 {
		if err := p.deps.History.MarkTopicsUsed(ctx, profile.ID, topics); err != nil {
			log.Error("pipeline: mark topics failed", "err", err)
		}
	}
	if err := p.deps.History.SaveBrief(ctx, brief); err != nil {
		log.Error("pipeline: save brief failed", "err", err)
	}

	elapsed := p.deps.Now().Sub(start)
	metrics.PipelineRuns.WithLabelValues("ok").Inc()
	metrics.PipelineDuration.Observe(elapsed.Seconds())
	log.Info("pipeline: brief generated",
		"policy", decision.Policy.Key,
		"groups", len(groups),
		"used_keys", len(usedKeys),
		"elapsed", elapsed.Round(time.Millisecond))
	return brief, nil
}
