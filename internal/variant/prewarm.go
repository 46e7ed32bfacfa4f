package variant

import (
	"context"
	"time"

	"shaderkit/internal/shader"
)

// Progress describes one prewarmed variant.
type Progress struct {
	Mode    string
	Mask    shader.FeatureMask
	Index   int // 1-based
	Total   int
	Cached  bool // already compiled before this call
	Failed  bool
	Elapsed time.Duration
}

// PrewarmResult summarizes a Prewarm call.
type PrewarmResult struct {
	Compiled int
	Cached   int
	Failed   int
	Elapsed  time.Duration
}

// Prewarm compiles the given masks for mode one after another so the first frame
// that needs them does not pay for compilation. ctx is checked between variants.
func (f *Frontend) Prewarm(ctx context.Context, mode string, masks []shader.FeatureMask, progress func(Progress)) (PrewarmResult, error) {
	var res PrewarmResult
	start := time.Now()

	for i, mask := range masks {
		if err := ctx.Err(); err != nil {
			res.Elapsed = time.Since(start)
			return res, err
		}
		t0 := time.Now()
		ev := Progress{Mode: mode, Mask: mask, Index: i + 1, Total: len(masks)}
		if _, ok := f.cache.Get(mode, mask); ok {
			ev.Cached = true
			res.Cached++
		} else if f.GetProgram(mode, mask) == nil {
			ev.Failed = true
			res.Failed++
		} else {
			res.Compiled++
		}
		ev.Elapsed = time.Since(t0)
		if progress != nil {
			progress(ev)
		}
	}
	res.Elapsed = time.Since(start)
	f.log.Info("prewarm finished", "shader", f.code.Name, "mode", mode,
		"compiled", res.Compiled, "cached", res.Cached, "failed", res.Failed, "elapsed", res.Elapsed)
	return res, nil
}
