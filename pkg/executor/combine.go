package executor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/usegrapevine/grapevine/pkg/planner"
)

// unionGroupPrefix marks a group that joins the union side of a HYBRID
// plan even when it carries required members.
const unionGroupPrefix = "union:"

// resultGroup collects the sub-queries sharing one group tag. Untagged
// sub-queries form singleton groups.
type resultGroup struct {
	key       string
	indices   []int
	required  bool // has a priority-1 member
	unionSide bool // tagged with the union prefix
}

func gatherGroups(subQueries []planner.SubQuery) []resultGroup {
	byKey := make(map[string]int)
	var groups []resultGroup
	for i, sq := range subQueries {
		key := sq.Group
		if key == "" {
			key = fmt.Sprintf("#%d", i)
		}
		gi, ok := byKey[key]
		if !ok {
			gi = len(groups)
			byKey[key] = gi
			groups = append(groups, resultGroup{
				key:       key,
				unionSide: strings.HasPrefix(key, unionGroupPrefix),
			})
		}
		groups[gi].indices = append(groups[gi].indices, i)
		if sq.Priority == 1 {
			groups[gi].required = true
		}
	}
	return groups
}

// groupIDs unions the ids of a group's successful members. The second
// return is false when no member succeeded, which is distinct from
// members succeeding with zero ids.
func groupIDs(results []ToolResult, indices []int) (map[int]struct{}, bool) {
	ids := make(map[int]struct{})
	succeeded := false
	for _, idx := range indices {
		if !results[idx].Success {
			continue
		}
		succeeded = true
		for _, id := range results[idx].PersonIDs {
			ids[id] = struct{}{}
		}
	}
	return ids, succeeded
}

// combine reduces the per-sub-query results to the surviving id set
// under the plan's strategy. Warnings report fallbacks taken when a
// group failed outright.
func combine(plan planner.Plan, results []ToolResult) (map[int]struct{}, []string) {
	switch plan.Strategy {
	case planner.StrategyParallelIntersect:
		return combineIntersect(gatherGroups(plan.SubQueries), results)
	case planner.StrategyHybrid:
		return combineHybrid(gatherGroups(plan.SubQueries), results)
	case planner.StrategySequential:
		return combineSequential(plan.SubQueries, results)
	default:
		return combineUnion(plan.SubQueries, results), nil
	}
}

// combineIntersect intersects the id unions of the required groups. A
// group whose members all failed is dropped from the intersection with a
// warning rather than zeroing the result; a group that succeeded with no
// ids legitimately empties it.
func combineIntersect(groups []resultGroup, results []ToolResult) (map[int]struct{}, []string) {
	var warnings []string
	var base map[int]struct{}
	for _, g := range requiredGroups(groups) {
		ids, succeeded := groupIDs(results, g.indices)
		if !succeeded {
			warnings = append(warnings, fmt.Sprintf(
				"group %q produced no successful results, intersecting the remaining groups", g.key))
			continue
		}
		if base == nil {
			base = ids
			continue
		}
		base = intersectSets(base, ids)
	}
	if base == nil {
		base = make(map[int]struct{})
	}
	return base, warnings
}

// combineUnion unions the ids the priority-1 sub-queries produced.
// Lower-priority sub-queries influence ranking only, never membership.
// When the plan has no priority-1 sub-queries everything contributes.
func combineUnion(subQueries []planner.SubQuery, results []ToolResult) map[int]struct{} {
	required := false
	for _, sq := range subQueries {
		if sq.Priority == 1 {
			required = true
			break
		}
	}

	out := make(map[int]struct{})
	for i, sq := range subQueries {
		if required && sq.Priority != 1 {
			continue
		}
		if !results[i].Success {
			continue
		}
		for _, id := range results[i].PersonIDs {
			out[id] = struct{}{}
		}
	}
	return out
}

// combineHybrid intersects the required groups with the union of the
// union-side groups. A group joins the union side when its key carries
// the union prefix or none of its members is priority 1.
func combineHybrid(groups []resultGroup, results []ToolResult) (map[int]struct{}, []string) {
	var intersectSide, unionSide []resultGroup
	for _, g := range groups {
		if g.unionSide || !g.required {
			unionSide = append(unionSide, g)
			continue
		}
		intersectSide = append(intersectSide, g)
	}

	var warnings []string
	var base map[int]struct{}
	haveIntersect := false
	for _, g := range intersectSide {
		ids, succeeded := groupIDs(results, g.indices)
		if !succeeded {
			warnings = append(warnings, fmt.Sprintf(
				"group %q produced no successful results, intersecting the remaining groups", g.key))
			continue
		}
		if !haveIntersect {
			base = ids
			haveIntersect = true
			continue
		}
		base = intersectSets(base, ids)
	}

	unionIDs := make(map[int]struct{})
	haveUnion := false
	for _, g := range unionSide {
		ids, succeeded := groupIDs(results, g.indices)
		if !succeeded {
			continue
		}
		haveUnion = true
		for id := range ids {
			unionIDs[id] = struct{}{}
		}
	}
	if len(unionSide) > 0 && !haveUnion {
		warnings = append(warnings, "no union group produced successful results, using the required groups only")
	}

	switch {
	case haveIntersect && haveUnion:
		return intersectSets(base, unionIDs), warnings
	case haveIntersect:
		return base, warnings
	case haveUnion:
		return unionIDs, warnings
	default:
		return make(map[int]struct{}), warnings
	}
}

// combineSequential yields the ids of the chain's final step. When the
// final step failed the last successful step's ids stand in, with a
// warning, so a transport blip does not erase the chain's work.
func combineSequential(subQueries []planner.SubQuery, results []ToolResult) (map[int]struct{}, []string) {
	order := sequentialOrder(subQueries)
	var warnings []string
	for i := len(order) - 1; i >= 0; i-- {
		r := results[order[i]]
		if !r.Success {
			continue
		}
		if i != len(order)-1 {
			warnings = append(warnings, fmt.Sprintf(
				"final step %q did not complete, using ids from step %d",
				subQueries[order[len(order)-1]].Tool, order[i]))
		}
		out := make(map[int]struct{}, len(r.PersonIDs))
		for _, id := range r.PersonIDs {
			out[id] = struct{}{}
		}
		return out, warnings
	}
	return make(map[int]struct{}), warnings
}

// requiredGroups picks the groups with a priority-1 member, or all
// groups when none is marked required.
func requiredGroups(groups []resultGroup) []resultGroup {
	var required []resultGroup
	for _, g := range groups {
		if g.required {
			required = append(required, g)
		}
	}
	if len(required) == 0 {
		return groups
	}
	return required
}

// sequentialOrder orders sub-query indices by priority, then by plan
// position for equal priorities.
func sequentialOrder(subQueries []planner.SubQuery) []int {
	order := make([]int, len(subQueries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := subQueries[order[a]].Priority, subQueries[order[b]].Priority
		if pa != pb {
			return pa < pb
		}
		return order[a] < order[b]
	})
	return order
}

func intersectSets(a, b map[int]struct{}) map[int]struct{} {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(map[int]struct{})
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// rank orders the surviving ids by how many successful sub-queries
// produced them, ties breaking toward the lower id, then truncates to
// twice the desired count bounded by maxRankedIDs.
func rank(results []ToolResult, survivors map[int]struct{}, desiredCount int) ([]int, map[int][]int) {
	provenance := make(map[int][]int, len(survivors))
	for _, r := range results {
		if !r.Success {
			continue
		}
		for _, id := range r.PersonIDs {
			if _, ok := survivors[id]; ok {
				provenance[id] = append(provenance[id], r.SubQueryIndex)
			}
		}
	}

	ids := make([]int, 0, len(provenance))
	for id := range provenance {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		sa, sb := len(provenance[ids[a]]), len(provenance[ids[b]])
		if sa != sb {
			return sa > sb
		}
		return ids[a] < ids[b]
	})

	limit := desiredCount * 2
	if limit > maxRankedIDs {
		limit = maxRankedIDs
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, provenance
}
