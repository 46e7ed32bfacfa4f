package shader

import (
	"slices"
	"testing"
)

func TestFeatureMask(t *testing.T) {
	m := Bit(0).With(Bit(5)).With(Bit(63))
	if m.Count() != 3 {
		t.Errorf("Count = %d", m.Count())
	}
	if !slices.Equal(m.IDs(), []int{0, 5, 63}) {
		t.Errorf("IDs = %v", m.IDs())
	}
	if !m.Has(Bit(5)) || m.Has(Bit(4)) || m.Has(0) {
		t.Error("Has mismatch")
	}
	if m.Without(Bit(5)).Intersects(Bit(5)) {
		t.Error("Without did not clear the bit")
	}
	if Bit(64) != 0 || Bit(-1) != 0 {
		t.Error("out-of-range bits must be zero")
	}
}

func TestParseFeatureMask(t *testing.T) {
	tests := map[string]FeatureMask{"3": 3, "0x10": 16, "0b101": 5, "0xffff_ffff_ffff_ffff": ^FeatureMask(0)}
	for in, want := range tests {
		got, err := ParseFeatureMask(in)
		if err != nil || got != want {
			t.Errorf("ParseFeatureMask(%q) = %v,%v", in, got, err)
		}
	}
	if _, err := ParseFeatureMask("0x1_0000_0000_0000_0000"); err == nil {
		t.Error("expected overflow error")
	}
}

func TestSubsets(t *testing.T) {
	got := FeatureMask(0b101).Subsets()
	if !slices.Equal(got, []FeatureMask{0, 1, 4, 5}) {
		t.Errorf("Subsets = %v", got)
	}
	if got := FeatureMask(0).Subsets(); !slices.Equal(got, []FeatureMask{0}) {
		t.Errorf("Subsets(0) = %v", got)
	}
}

func TestStage(t *testing.T) {
	s, ok := ParseStage("fs")
	if !ok || s != StageFragment || s.Define() != "STAGE_FRAGMENT" {
		t.Errorf("ParseStage(fs) = %v,%v", s, ok)
	}
	if _, ok := ParseStage("geometry"); ok {
		t.Error("geometry is not a stage")
	}
}

func TestSplitSections(t *testing.T) {
	text := "\\default.vs\nvs body\n\\default.fs\nfs 1\nfs 2\n"
	secs, err := SplitSections(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(secs) != 2 {
		t.Fatalf("got %d sections", len(secs))
	}
	if secs[0].Name != "default.vs" || secs[0].Body != "vs body\n" || secs[0].Line != 2 || secs[0].Offset != 12 {
		t.Errorf("section 0 = %+v", secs[0])
	}
	if secs[1].Name != "default.fs" || secs[1].Body != "fs 1\nfs 2\n" || secs[1].Line != 4 {
		t.Errorf("section 1 = %+v", secs[1])
	}

	plain, _ := SplitSections("just code\n")
	if len(plain) != 1 || plain[0].Name != "" || plain[0].Body != "just code\n" {
		t.Errorf("plain = %+v", plain)
	}
}
