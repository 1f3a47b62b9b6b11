package animate

import (
	"github.com/matzehuels/phylomorph/pkg/morph"
	"github.com/matzehuels/phylomorph/pkg/tree/transform"
)

type radiusKey struct {
	mode    transform.Mode
	uniform bool
	epoch   uint64
}

// RadiusPolicy holds the run's stable label and extension radii. They are
// fixed by the target of the first transition drawn (or by the tree itself
// for an instant draw) and recomputed only when the branch transform, the
// uniform-scale switch or the cache epoch change.
type RadiusPolicy struct {
	*morph.StableRadii
	key   radiusKey
	keyed bool
}

// NewRadiusPolicy returns a policy with the given offsets beyond the initial
// maximum leaf radius.
func NewRadiusPolicy(labelOffset, extensionOffset float64) *RadiusPolicy {
	r := morph.NewStableRadii()
	r.LabelOffset, r.ExtensionOffset = labelOffset, extensionOffset
	return &RadiusPolicy{StableRadii: r}
}

// sync records the layout inputs and reports whether they changed. On a
// change the radii are forgotten so the next layout drawn fixes them again.
func (p *RadiusPolicy) sync(k radiusKey) bool {
	if p.keyed && p.key == k {
		return false
	}
	changed := p.keyed
	p.key, p.keyed = k, true
	p.Reset()
	return changed
}
