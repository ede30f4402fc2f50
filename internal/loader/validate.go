package loader

import (
	"github.com/rs/zerolog"

	"github.com/corefp/fingerprint/internal/rules"
)

// pruneUnknownEdges drops implies/requires/excludes entries that point
// at a technology absent from the final merged set, logging each drop
// the same way normalizeTech drops an unknown category id. This must
// run after every source has been merged (not per-source, inside
// normalizeTech): a tech in one shard legitimately implies or requires
// a tech defined only in another shard, and that forward reference only
// becomes resolvable once the full namespace exists.
func pruneUnknownEdges(log zerolog.Logger, techs map[string]*rules.TechRule) {
	for id, t := range techs {
		if len(t.Implies) > 0 {
			kept := make([]rules.ImpliesEdge, 0, len(t.Implies))
			for _, edge := range t.Implies {
				if _, ok := techs[edge.TechID]; ok {
					kept = append(kept, edge)
					continue
				}
				log.Warn().Str("tech", id).Str("implies", edge.TechID).
					Msg("dropping implies edge to unknown technology")
			}
			t.Implies = kept
		}

		t.Requires = pruneUnknownIDs(log, id, "requires", t.Requires, techs)
		t.Excludes = pruneUnknownIDs(log, id, "excludes", t.Excludes, techs)
	}
}

// pruneUnknownIDs drops any tech ID in ids that isn't a key of techs,
// logging the drop under field for context.
func pruneUnknownIDs(log zerolog.Logger, tech, field string, ids []string, techs map[string]*rules.TechRule) []string {
	if len(ids) == 0 {
		return ids
	}
	kept := make([]string, 0, len(ids))
	for _, target := range ids {
		if _, ok := techs[target]; ok {
			kept = append(kept, target)
			continue
		}
		log.Warn().Str("tech", tech).Str(field, target).
			Msg("dropping reference to unknown technology")
	}
	return kept
}
