package animate

import (
	"math"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/matzehuels/phylomorph/pkg/diff"
	"github.com/matzehuels/phylomorph/pkg/polar"
)

// DefaultTransitionDuration is the playback time of one tree-to-tree
// transition.
const DefaultTransitionDuration = 1500 * time.Millisecond

// Eases maps easing names accepted on the command line to functions.
var Eases = map[string]ease.TweenFunc{
	"linear":       ease.Linear,
	"in-out-quad":  ease.InOutQuad,
	"in-out-cubic": ease.InOutCubic,
	"in-out-sine":  ease.InOutSine,
	"out-cubic":    ease.OutCubic,
}

// Player advances timeline progress at a constant rate and eases the local
// t of every transition.
type Player struct {
	Duration time.Duration
	Ease     ease.TweenFunc

	tween    *gween.Tween
	progress float64
	dir      diff.Direction
}

// NewPlayer returns a player spending d on each transition. A nil fn eases
// in and out cubically.
func NewPlayer(d time.Duration, fn ease.TweenFunc) *Player {
	if d <= 0 {
		d = DefaultTransitionDuration
	}
	if fn == nil {
		fn = ease.InOutCubic
	}
	return &Player{Duration: d, Ease: fn}
}

// Start plays from progress to the end of the timeline in dir. trees is the
// run length.
func (p *Player) Start(progress float64, dir diff.Direction, trees int) {
	p.progress = polar.Clamp01(progress)
	p.dir = dir
	end := 1.0
	if dir == diff.Backward {
		end = 0
	}
	remaining := math.Abs(end-p.progress) * float64(max(trees-1, 0))
	d := float32(remaining * p.Duration.Seconds())
	if d <= 0 {
		p.tween = nil
		p.progress = end
		return
	}
	p.tween = gween.New(float32(p.progress), float32(end), d, ease.Linear)
}

// Stop ends playback where it is.
func (p *Player) Stop() { p.tween = nil }

// Active reports whether playback is running.
func (p *Player) Active() bool { return p.tween != nil }

// Progress returns the current timeline position.
func (p *Player) Progress() float64 { return p.progress }

// Direction returns the direction of the last Start.
func (p *Player) Direction() diff.Direction { return p.dir }

// Update advances playback by dt and reports the new progress and whether
// the end of the timeline was reached.
func (p *Player) Update(dt time.Duration) (float64, bool) {
	if p.tween == nil {
		return p.progress, true
	}
	v, done := p.tween.Update(float32(dt.Seconds()))
	p.progress = polar.Clamp01(float64(v))
	if done {
		p.tween = nil
	}
	return p.progress, done
}

// Position maps timeline progress on a run of n trees to the transition it
// falls in and the eased t within it.
func (p *Player) Position(progress float64, n int) (from, to int, t float64) {
	return Position(progress, n, p.Ease)
}

// Position maps timeline progress on a run of n trees to a transition
// from -> to and its t, eased by fn when fn is not nil.
func Position(progress float64, n int, fn ease.TweenFunc) (from, to int, t float64) {
	if n < 2 {
		return 0, 0, 0
	}
	pos := polar.Clamp01(progress) * float64(n-1)
	from = min(int(math.Floor(pos)), n-2)
	t = pos - float64(from)
	if fn != nil {
		t = float64(fn(float32(t), 0, 1, 1))
	}
	return from, from + 1, polar.Clamp01(t)
}
