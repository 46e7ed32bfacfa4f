package prof

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStartEmpty(t *testing.T) {
	s, err := Start(Paths{})
	if err != nil || s != nil {
		t.Fatalf("Start(empty) = %v, %v", s, err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("nil Stop: %v", err)
	}
}

func TestSessionWritesFiles(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		CPU:   filepath.Join(dir, "cpu.out"),
		Mem:   filepath.Join(dir, "mem.out"),
		Trace: filepath.Join(dir, "trace.out"),
	}
	s, err := Start(paths)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{paths.CPU, paths.Mem, paths.Trace} {
		if fi, err := os.Stat(p); err != nil || fi.Size() == 0 {
			t.Errorf("%s: %v", filepath.Base(p), err)
		}
	}
}

func TestStartBadPath(t *testing.T) {
	dir := t.TempDir()
	_, err := Start(Paths{CPU: filepath.Join(dir, "cpu.out"), Trace: filepath.Join(dir, "missing", "t.out")})
	if err == nil {
		t.Fatal("expected error")
	}
	// cpu profiling must have been stopped, so a new one can start
	s, err := Start(Paths{CPU: filepath.Join(dir, "cpu2.out")})
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	_ = s.Stop()
}
