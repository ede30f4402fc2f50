// Package loader ingests rule sources (embedded shard data, on-disk
// directories, or remote fetches) across the Wappalyzer JSON dialect and
// a YAML dialect, normalizes and merges them in declared precedence
// order, and produces a compiled *rules.RuleLibrary.
package loader

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/corefp/fingerprint/internal/rules"
)

// Load fetches every source concurrently (sources are independent until
// the merge step), then merges in declared precedence order: sources[0]
// is highest precedence. When no sources are given, the embedded
// default is used. Returns LoadErrNoSources if the merged result defines
// no technology at all.
func Load(ctx context.Context, log zerolog.Logger, cfg Config, sources ...Source) (*rules.RuleLibrary, error) {
	if len(sources) == 0 {
		sources = []Source{EmbeddedSource{}}
	}

	bundles := make([]*rawBundle, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			b, err := src.fetch(gctx, log, cfg)
			if err != nil {
				return err
			}
			bundles[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	categories := mergeCategories(bundles)
	techs := mergeTechnologies(log, sources, bundles, categories)

	if len(techs) == 0 {
		return nil, noSourcesErr()
	}

	pruneUnknownEdges(log, techs)

	return &rules.RuleLibrary{
		Technologies: techs,
		Categories:   categories,
		Prefilter:    rules.BuildPrefilter(techs),
	}, nil
}

// mergeCategories takes the first definition seen for a given category
// ID, walking sources in precedence order.
func mergeCategories(bundles []*rawBundle) map[string]*rules.CategoryRule {
	out := make(map[string]*rules.CategoryRule)
	for _, b := range bundles {
		if b == nil {
			continue
		}
		for id, c := range b.Categories {
			if _, ok := out[id]; ok {
				continue
			}
			out[id] = &rules.CategoryRule{ID: id, Name: c.Name, Priority: c.Priority}
		}
	}
	return out
}

func mergeTechnologies(log zerolog.Logger, sources []Source, bundles []*rawBundle, cats map[string]*rules.CategoryRule) map[string]*rules.TechRule {
	rawCats := make(map[string]rawCategory, len(cats))
	for id, c := range cats {
		rawCats[id] = rawCategory{Name: c.Name, Priority: c.Priority}
	}

	out := make(map[string]*rules.TechRule)
	for i, b := range bundles {
		if b == nil {
			continue
		}
		sourceName := sources[i].Name()
		for name, rt := range b.Technologies {
			normalized := normalizeTech(log, sourceName, name, rt, rawCats)
			if existing, ok := out[name]; ok {
				mergeTech(existing, normalized)
			} else {
				out[name] = normalized
			}
		}
	}
	return out
}
