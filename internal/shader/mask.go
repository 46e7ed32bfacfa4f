package shader

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"unsafe"
)

// MaxBlocks is the hard ceiling on registered shading blocks: one bit per block.
const MaxBlocks = 64

// FeatureMask selects enabled blocks: bit i set enables the block with flag id i.
type FeatureMask uint64

// A mismatch between the mask width and MaxBlocks fails to compile.
const (
	_ = 8*unsafe.Sizeof(FeatureMask(0)) - MaxBlocks
	_ = MaxBlocks - 8*unsafe.Sizeof(FeatureMask(0))
)

// Bit returns the mask with only bit id set. Ids outside [0, MaxBlocks) yield 0.
func Bit(id int) FeatureMask {
	if id < 0 || id >= MaxBlocks {
		return 0
	}
	return FeatureMask(1) << uint(id)
}

// Has reports whether every bit of other is set in m.
func (m FeatureMask) Has(other FeatureMask) bool {
	return other != 0 && m&other == other
}

// Intersects reports whether m and other share a bit.
func (m FeatureMask) Intersects(other FeatureMask) bool {
	return m&other != 0
}

func (m FeatureMask) With(other FeatureMask) FeatureMask    { return m | other }
func (m FeatureMask) Without(other FeatureMask) FeatureMask { return m &^ other }

// Count returns the number of enabled blocks.
func (m FeatureMask) Count() int {
	return bits.OnesCount64(uint64(m))
}

// IDs returns the set bit positions in ascending order.
func (m FeatureMask) IDs() []int {
	out := make([]int, 0, m.Count())
	for v := uint64(m); v != 0; v &= v - 1 {
		out = append(out, bits.TrailingZeros64(v))
	}
	return out
}

func (m FeatureMask) String() string {
	return fmt.Sprintf("0x%x", uint64(m))
}

// ParseFeatureMask parses decimal, 0x hex or 0b binary notation.
func ParseFeatureMask(s string) (FeatureMask, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(strings.TrimSpace(s), "_", ""), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid feature mask %q: %w", s, err)
	}
	return FeatureMask(v), nil
}

// Subsets returns every mask made of bits from m, starting at 0 and ending at m.
func (m FeatureMask) Subsets() []FeatureMask {
	out := make([]FeatureMask, 0, 1<<min(m.Count(), 20))
	// перебор подмасок: sub = (sub - m) & m
	sub := FeatureMask(0)
	for {
		out = append(out, sub)
		if sub == m {
			return out
		}
		sub = (sub - m) & m
	}
}
