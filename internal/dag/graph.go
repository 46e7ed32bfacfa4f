package dag

import (
	"fmt"
	"slices"
	"strings"

	"shaderkit/internal/diag"
)

type Graph struct {
	Edges   [][]NodeID // Edges[from] = []to
	Indeg   []int      // входящие степени для Kahn (только присутствующие узлы)
	Present []bool     // узел зарегистрирован, а не только упомянут
	Self    []bool     // узел ссылается сам на себя
}

// Missing is a reference to a name that is not a node.
type Missing struct {
	From NodeID
	Dep  Dep
}

// BuildGraph wires edges between present nodes. Duplicate node names are
// reported as errors and the later declaration is ignored. References to
// absent names are returned, not reported: blocks may be registered later.
func BuildGraph(idx Index, metas []NodeMeta, reporter diag.Reporter) (Graph, []Missing) {
	n := len(idx.IDToName)
	g := Graph{
		Edges:   make([][]NodeID, n),
		Indeg:   make([]int, n),
		Present: make([]bool, n),
		Self:    make([]bool, n),
	}
	slots := make([]*NodeMeta, n)
	for i := range metas {
		meta := &metas[i]
		id, ok := idx.NameToID[meta.Name]
		if !ok {
			continue
		}
		if slots[id] != nil {
			if reporter != nil {
				diag.ReportError(reporter, diag.CfgDuplicateName, meta.Span,
					fmt.Sprintf("duplicate block %q", meta.Name)).
					WithNote(slots[id].Span, "previous declaration here").
					Emit()
			}
			continue
		}
		slots[id] = meta
		g.Present[id] = true
	}

	var missing []Missing
	for from, meta := range slots {
		if meta == nil {
			continue
		}
		fromID := NodeID(from) // #nosec G115 -- bounded by BuildIndex
		seen := make(map[NodeID]struct{}, len(meta.Deps))
		for _, dep := range meta.Deps {
			toID, ok := idx.NameToID[dep.Name]
			if !ok || !g.Present[toID] {
				missing = append(missing, Missing{From: fromID, Dep: dep})
				continue
			}
			if toID == fromID {
				g.Self[from] = true
				continue
			}
			if _, dup := seen[toID]; dup {
				continue
			}
			seen[toID] = struct{}{}
			g.Edges[from] = append(g.Edges[from], toID)
			g.Indeg[toID]++
		}
		slices.Sort(g.Edges[from])
	}
	return g, missing
}

// CyclePath returns one concrete cycle through the nodes left over by Kahn,
// as names with the first repeated at the end: a -> b -> a.
func CyclePath(idx Index, g Graph, topo *Topo) []string {
	for _, id := range topo.Cycles {
		if g.Self[id] {
			name := idx.IDToName[id]
			return []string{name, name}
		}
	}
	if len(topo.Cycles) == 0 {
		return nil
	}
	inCycle := make(map[NodeID]bool, len(topo.Cycles))
	for _, id := range topo.Cycles {
		inCycle[id] = true
	}
	// each node in Cycles keeps a successor inside the set, so the walk revisits a node
	pos := make(map[NodeID]int)
	var path []NodeID
	cur := topo.Cycles[0]
	for {
		if at, ok := pos[cur]; ok {
			cycle := append(path[at:], cur)
			return idx.Names(cycle)
		}
		pos[cur] = len(path)
		path = append(path, cur)
		next, found := NodeID(0), false
		for _, to := range g.Edges[cur] {
			if inCycle[to] {
				next, found = to, true
				break
			}
		}
		if !found {
			return idx.Names(path)
		}
		cur = next
	}
}

// ReportCycles emits one error per node stuck in a cycle.
func ReportCycles(idx Index, metas []NodeMeta, g Graph, topo *Topo, reporter diag.Reporter) {
	if reporter == nil || !topo.Cyclic {
		return
	}
	summary := strings.Join(CyclePath(idx, g, topo), " -> ")
	spans := make(map[string]NodeMeta, len(metas))
	for _, m := range metas {
		if _, ok := spans[m.Name]; !ok {
			spans[m.Name] = m
		}
	}
	for _, id := range topo.Cycles {
		name := idx.IDToName[id]
		msg := fmt.Sprintf("block %q participates in a dependency cycle: %s", name, summary)
		reporter.Report(diag.RegCycle, diag.SevError, spans[name].Span, msg, nil)
	}
}
