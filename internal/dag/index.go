package dag

import (
	"fmt"
	"sort"

	"fortio.org/safecast"

	"shaderkit/internal/source"
)

type NodeID uint32

// Dep is one outgoing reference of a node.
type Dep struct {
	Name string
	Span source.Span
}

// NodeMeta describes a node (a shading block) and the names it references.
type NodeMeta struct {
	Name string
	Span source.Span
	Deps []Dep
}

type Index struct {
	NameToID map[string]NodeID
	IDToName []string
}

// собрать уникальные имена (узлы и зависимости), отсортировать, раздать ID по порядку
func BuildIndex(metas []NodeMeta) (Index, error) {
	uniq := make(map[string]struct{}, len(metas))
	for _, meta := range metas {
		if meta.Name != "" {
			uniq[meta.Name] = struct{}{}
		}
		for _, dep := range meta.Deps {
			if dep.Name != "" {
				uniq[dep.Name] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(uniq))
	for name := range uniq {
		names = append(names, name)
	}
	sort.Strings(names)

	nameToID := make(map[string]NodeID, len(names))
	for i, name := range names {
		id, err := safecast.Conv[NodeID](i)
		if err != nil {
			return Index{}, fmt.Errorf("node id overflow: %w", err)
		}
		nameToID[name] = id
	}
	return Index{NameToID: nameToID, IDToName: names}, nil
}

// Names maps ids back to names.
func (idx Index) Names(ids []NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = idx.IDToName[int(id)]
	}
	return out
}
