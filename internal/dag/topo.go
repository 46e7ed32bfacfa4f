package dag

import (
	"slices"
)

type Topo struct {
	Order   []NodeID   // линейный порядок (только присутствующие узлы)
	Batches [][]NodeID // волны независимых узлов
	Cyclic  bool
	Cycles  []NodeID // узлы, оставшиеся в цикле (включая самоссылки)
}

// ToposortKahn orders present nodes so that every node precedes the nodes it
// references. Nodes on a cycle, including self references, end up in Cycles;
// nodes that merely depend on a cycle are left out of both lists.
func ToposortKahn(g Graph) *Topo {
	n := len(g.Edges)
	indeg := slices.Clone(g.Indeg)
	topo := &Topo{Order: make([]NodeID, 0, n)}

	active := 0
	current := make([]NodeID, 0, n)
	for i := range n {
		if !g.Present[i] {
			continue
		}
		active++
		if indeg[i] == 0 {
			current = append(current, NodeID(i)) // #nosec G115 -- bounded by BuildIndex
		}
	}

	visited := 0
	for len(current) > 0 {
		batch := slices.Clone(current)
		topo.Batches = append(topo.Batches, batch)

		next := make([]NodeID, 0)
		for _, id := range batch {
			topo.Order = append(topo.Order, id)
			visited++
			for _, to := range g.Edges[id] {
				indeg[to]--
				if indeg[to] == 0 {
					next = append(next, to)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	// остаток после Kahn содержит и узлы ниже цикла: срезаем те, у кого нет
	// исходящих рёбер внутри остатка, пока такие есть
	residual := make([]bool, n)
	outdeg := make([]int, n)
	preds := make([][]NodeID, n)
	for i := range n {
		residual[i] = g.Present[i] && indeg[i] > 0
	}
	for from := range n {
		if !residual[from] {
			continue
		}
		for _, to := range g.Edges[from] {
			if residual[to] {
				outdeg[from]++
				preds[to] = append(preds[to], NodeID(from)) // #nosec G115 -- bounded by BuildIndex
			}
		}
	}
	var sinks []NodeID
	for i := range n {
		if residual[i] && outdeg[i] == 0 {
			sinks = append(sinks, NodeID(i)) // #nosec G115 -- bounded by BuildIndex
		}
	}
	for len(sinks) > 0 {
		id := sinks[len(sinks)-1]
		sinks = sinks[:len(sinks)-1]
		residual[id] = false
		for _, p := range preds[id] {
			outdeg[p]--
			if outdeg[p] == 0 && residual[p] {
				sinks = append(sinks, p)
			}
		}
	}

	for i := range n {
		if residual[i] || (g.Present[i] && g.Self[i]) {
			topo.Cycles = append(topo.Cycles, NodeID(i)) // #nosec G115 -- bounded by BuildIndex
		}
	}
	topo.Cyclic = visited != active || len(topo.Cycles) > 0
	return topo
}
