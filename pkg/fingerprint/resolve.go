package fingerprint

import (
	"sort"

	"github.com/corefp/fingerprint/internal/rules"
)

// edgeKey identifies one implies edge so propagation never applies the
// same edge twice -- this is both how duplicate implications stay
// idempotent and how an A->B->A cycle terminates (spec.md §8).
type edgeKey struct{ from, to string }

// propagateImplies iterates implication propagation to a fixpoint, or
// (when firstLevelOnly is set, for the lite pipeline) applies only the
// edges reachable directly from the technologies matched so far. Each
// declared edge is applied at most once, regardless of how many
// fixpoint rounds run, which bounds the loop by the total edge count
// even across cycles.
func propagateImplies(lib *rules.RuleLibrary, hits map[string]*techHit, firstLevelOnly bool) {
	applied := make(map[edgeKey]bool)
	for {
		progressed := false
		ids := make([]string, 0, len(hits))
		for id := range hits {
			ids = append(ids, id)
		}
		for _, id := range ids {
			hit := hits[id]
			rule := lib.Technologies[id]
			if rule == nil {
				continue
			}
			for _, edge := range rule.Implies {
				if _, ok := lib.Technologies[edge.TechID]; !ok {
					// Load-time validation already drops unknown implies
					// targets; this is defense in depth against a
					// library built by hand rather than through loader.Load.
					continue
				}
				key := edgeKey{id, edge.TechID}
				if applied[key] {
					continue
				}
				applied[key] = true
				progressed = true

				conf := edge.Confidence
				if conf <= 0 {
					conf = 100
				}
				if hit.confidence < conf {
					conf = hit.confidence
				}

				child := getOrCreateHit(hits, edge.TechID)
				wasDirect := child.direct
				child.confidence = clampInt(child.confidence+conf, 0, 100)
				if !wasDirect && child.impliedBy == "" {
					child.impliedBy = id
				}
			}
		}
		if !progressed || firstLevelOnly {
			return
		}
	}
}

// applyRequiresAndExcludes runs steps 6-8 of spec.md §4.4 in order, each
// consulting the surviving set left by the previous step. Every step
// decides its removals against a sorted, frozen snapshot of the
// surviving IDs rather than ranging over hits while deleting from it:
// map iteration order is randomized per-call, so deciding from a live
// map makes the outcome depend on that order -- the same input could
// keep a different survivor of a mutually-exclusive pair on different
// calls. Deciding from a stable sorted snapshot makes the result
// reproducible regardless of Go's map order (spec.md §8 Testable
// Property 1, §5's ordering guarantees).
func applyRequiresAndExcludes(lib *rules.RuleLibrary, hits map[string]*techHit) {
	applyRequires(lib, hits)
	applyRequiresCategory(lib, hits)
	applyExcludes(lib, hits)
}

// applyRequires drops any tech whose requires list is not fully
// satisfied by the surviving set, run to a fixpoint so a transitive
// chain (X requires Y, Y requires Z, Z absent) fully cascades: dropping
// Y for missing Z must still cause X to be dropped in the same call.
func applyRequires(lib *rules.RuleLibrary, hits map[string]*techHit) {
	for {
		ids := sortedHitIDs(hits)
		removed := false
		for _, id := range ids {
			rule := lib.Technologies[id]
			if rule == nil {
				continue
			}
			for _, req := range rule.Requires {
				if _, ok := hits[req]; !ok {
					delete(hits, id)
					removed = true
					break
				}
			}
		}
		if !removed {
			return
		}
	}
}

// applyRequiresCategory drops any tech whose requires_category list
// names a category absent from the surviving set, to a fixpoint for the
// same transitive-chain reason as applyRequires.
func applyRequiresCategory(lib *rules.RuleLibrary, hits map[string]*techHit) {
	for {
		presentCats := make(map[string]bool)
		for id := range hits {
			if rule := lib.Technologies[id]; rule != nil {
				for _, c := range rule.Categories {
					presentCats[c] = true
				}
			}
		}

		ids := sortedHitIDs(hits)
		removed := false
		for _, id := range ids {
			rule := lib.Technologies[id]
			if rule == nil {
				continue
			}
			for _, cat := range rule.RequiresCategory {
				if !presentCats[cat] {
					delete(hits, id)
					removed = true
					break
				}
			}
		}
		if !removed {
			return
		}
	}
}

// applyExcludes removes every technology named in a surviving tech's
// excludes list. Every surviving tech nominates its exclusion targets
// against one frozen snapshot, and only then are the nominated targets
// deleted -- deciding and applying are separate passes, so a
// mutually-excluding pair (A excludes B, B excludes A) deterministically
// loses both members on every call instead of leaving a survivor chosen
// by which one happened to be visited, and run, first.
func applyExcludes(lib *rules.RuleLibrary, hits map[string]*techHit) {
	ids := sortedHitIDs(hits)
	toRemove := make(map[string]bool)
	for _, id := range ids {
		rule := lib.Technologies[id]
		if rule == nil {
			continue
		}
		for _, ex := range rule.Excludes {
			toRemove[ex] = true
		}
	}
	for ex := range toRemove {
		delete(hits, ex)
	}
}

// sortedHitIDs snapshots the surviving tech IDs in sorted order so
// callers can decide removals against a stable view instead of a live,
// randomly-ordered map.
func sortedHitIDs(hits map[string]*techHit) []string {
	ids := make([]string, 0, len(hits))
	for id := range hits {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// materialize builds the sorted, clamped, de-duplicated-category public
// output from the surviving hits (spec.md §4.4 step 9-10).
func materialize(lib *rules.RuleLibrary, hits map[string]*techHit) []Technology {
	out := make([]Technology, 0, len(hits))
	for id, h := range hits {
		confidence := clampInt(h.confidence, 0, 100)
		if confidence < 1 {
			continue // confidence:0 patterns never survive alone (spec.md §8)
		}
		rule := lib.Technologies[id]
		tech := Technology{
			Name:       id,
			Confidence: confidence,
			Version:    largestVersion(h.versions),
		}
		if !h.direct {
			tech.ImpliedBy = h.impliedBy
		}
		if rule != nil {
			tech.Categories = sortedUniqueStrings(rule.Categories)
		}
		out = append(out, tech)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// materializeLite builds the fast-path output: name and confidence
// only, per spec.md §4.4's "Lite variant".
func materializeLite(hits map[string]*techHit) []TechnologyLite {
	out := make([]TechnologyLite, 0, len(hits))
	for id, h := range hits {
		confidence := clampInt(h.confidence, 0, 100)
		if confidence < 1 {
			continue
		}
		out = append(out, TechnologyLite{Name: id, Confidence: confidence})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// largestVersion picks the lexicographically-largest version string,
// ties broken by insertion order (spec.md §4.4 step 9).
func largestVersion(versions []string) string {
	best := ""
	for _, v := range versions {
		if v > best {
			best = v
		}
	}
	return best
}

func sortedUniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
