package variant

import (
	"shaderkit/internal/gpu"
	"shaderkit/internal/shader"
)

// Cache maps render mode and feature mask to a compiled program. It is filled
// lazily and only ever cleared as a whole.
type Cache struct {
	programs map[string]map[shader.FeatureMask]gpu.Program
	n        int
}

func NewCache() *Cache {
	return &Cache{programs: make(map[string]map[shader.FeatureMask]gpu.Program)}
}

func (c *Cache) Get(mode string, mask shader.FeatureMask) (gpu.Program, bool) {
	p, ok := c.programs[mode][mask]
	return p, ok
}

func (c *Cache) Put(mode string, mask shader.FeatureMask, p gpu.Program) {
	byMask, ok := c.programs[mode]
	if !ok {
		byMask = make(map[shader.FeatureMask]gpu.Program)
		c.programs[mode] = byMask
	}
	if old, ok := byMask[mask]; ok && old != p {
		old.Release()
		c.n--
	}
	byMask[mask] = p
	c.n++
}

// Len is the number of cached programs.
func (c *Cache) Len() int { return c.n }

// Clear drops every entry. With release set each program is released first;
// without it the handles are abandoned (their context is gone).
func (c *Cache) Clear(release bool) int {
	n := c.n
	if release {
		for _, byMask := range c.programs {
			for _, p := range byMask {
				p.Release()
			}
		}
	}
	clear(c.programs)
	c.n = 0
	return n
}
