package dag

import (
	"slices"
	"strings"
	"testing"

	"shaderkit/internal/diag"
	"shaderkit/internal/source"
)

func metas(deps map[string][]string) []NodeMeta {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]NodeMeta, 0, len(deps))
	for _, name := range names {
		m := NodeMeta{Name: name}
		for _, d := range deps[name] {
			m.Deps = append(m.Deps, Dep{Name: d})
		}
		out = append(out, m)
	}
	return out
}

func build(t *testing.T, deps map[string][]string) (Index, Graph, []Missing, *Topo) {
	t.Helper()
	ms := metas(deps)
	idx, err := BuildIndex(ms)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	g, missing := BuildGraph(idx, ms, nil)
	return idx, g, missing, ToposortKahn(g)
}

func TestBuildIndexIncludesDeps(t *testing.T) {
	idx, err := BuildIndex(metas(map[string][]string{"fog": {"noise"}, "shadow": nil}))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(idx.IDToName, []string{"fog", "noise", "shadow"}) {
		t.Fatalf("IDToName = %v", idx.IDToName)
	}
	if idx.NameToID["noise"] != 1 {
		t.Errorf("NameToID[noise] = %d", idx.NameToID["noise"])
	}
}

func TestToposortAcyclic(t *testing.T) {
	idx, _, missing, topo := build(t, map[string][]string{
		"lit":    {"shadow", "fog"},
		"shadow": {"pcf"},
		"pcf":    nil,
		"fog":    {"noise"},
	})
	if topo.Cyclic {
		t.Fatalf("unexpected cycle: %v", idx.Names(topo.Cycles))
	}
	if got := idx.Names(topo.Order); !slices.Equal(got, []string{"lit", "fog", "shadow", "pcf"}) {
		t.Errorf("Order = %v", got)
	}
	if len(topo.Batches) != 3 {
		t.Errorf("Batches = %v", topo.Batches)
	}
	if len(missing) != 1 || missing[0].Dep.Name != "noise" {
		t.Errorf("missing = %+v", missing)
	}
}

func TestToposortCycle(t *testing.T) {
	idx, g, _, topo := build(t, map[string][]string{
		"entry": {"a"},
		"a":     {"b"},
		"b":     {"a", "leaf"},
		"leaf":  nil,
	})
	if !topo.Cyclic {
		t.Fatal("expected cycle")
	}
	if got := idx.Names(topo.Cycles); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Cycles = %v, want [a b]", got)
	}
	path := CyclePath(idx, g, topo)
	if len(path) != 3 || path[0] != path[2] {
		t.Errorf("CyclePath = %v", path)
	}
}

func TestToposortSelfReference(t *testing.T) {
	idx, g, _, topo := build(t, map[string][]string{"fog": {"fog"}, "other": nil})
	if !topo.Cyclic {
		t.Fatal("self reference must be cyclic")
	}
	if got := CyclePath(idx, g, topo); !slices.Equal(got, []string{"fog", "fog"}) {
		t.Errorf("CyclePath = %v", got)
	}
}

func TestReportCycles(t *testing.T) {
	ms := []NodeMeta{
		{Name: "a", Span: source.Span{Start: 1, End: 2}, Deps: []Dep{{Name: "b"}}},
		{Name: "b", Span: source.Span{Start: 3, End: 4}, Deps: []Dep{{Name: "a"}}},
	}
	idx, _ := BuildIndex(ms)
	g, _ := BuildGraph(idx, ms, nil)
	topo := ToposortKahn(g)

	bag := diag.NewBag(0)
	ReportCycles(idx, ms, g, topo, diag.BagReporter{Bag: bag})
	if bag.Len() != 2 {
		t.Fatalf("got %d diagnostics, want 2", bag.Len())
	}
	for _, d := range bag.Items() {
		if d.Code != diag.RegCycle || !strings.Contains(d.Message, "->") {
			t.Errorf("unexpected diagnostic %s %q", d.Code.ID(), d.Message)
		}
	}
}

func TestBuildGraphDuplicate(t *testing.T) {
	ms := []NodeMeta{{Name: "fog"}, {Name: "fog", Span: source.Span{Start: 5, End: 8}}}
	idx, _ := BuildIndex(ms)
	bag := diag.NewBag(0)
	BuildGraph(idx, ms, diag.BagReporter{Bag: bag})
	if bag.Len() != 1 || bag.Items()[0].Code != diag.CfgDuplicateName {
		t.Fatalf("expected one duplicate diagnostic, got %d", bag.Len())
	}
}
