package observ

import (
	"strings"
	"testing"
	"time"
)

func fakeClock(step time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func TestTimerPhases(t *testing.T) {
	tm := NewTimer()
	tm.now = fakeClock(2 * time.Millisecond)

	done := tm.Track("manifest")
	done("3 files")
	idx := tm.Begin("compile")
	tm.End(idx, "")
	tm.End(42, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 {
		t.Fatalf("phases = %+v", r.Phases)
	}
	if r.Phases[0].DurationMS != 2 || r.Phases[0].Note != "3 files" {
		t.Errorf("manifest phase = %+v", r.Phases[0])
	}
	if r.TotalMS != 4 {
		t.Errorf("total = %v", r.TotalMS)
	}

	s := tm.Summary()
	for _, want := range []string{"timings:", "manifest     2.00 ms  // 3 files", "total        4.00 ms"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary misses %q:\n%s", want, s)
		}
	}
}

func TestNilTimer(t *testing.T) {
	var tm *Timer
	tm.Track("x")("note")
	if r := tm.Report(); len(r.Phases) != 0 {
		t.Errorf("nil timer report = %+v", r)
	}
	if !strings.HasPrefix(tm.Summary(), "timings:") {
		t.Error("nil timer summary")
	}
}
