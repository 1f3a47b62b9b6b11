package scene

import (
	"math"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// focusPadding leaves a tenth of the framed radius free around the tree.
const focusPadding = 1.1

// Camera maps layout space to the canvas: the layout point (X, Y) lands on
// the canvas centre, scaled by Zoom.
type Camera struct {
	X, Y float64
	Zoom float64

	Ease ease.TweenFunc

	anim *cameraAnim
}

// cameraAnim holds the active transition tweens for X, Y and Zoom.
type cameraAnim struct {
	tweens [3]*gween.Tween
	done   [3]bool
}

// NewCamera returns a camera at the origin with zoom 1.
func NewCamera() *Camera {
	return &Camera{Zoom: 1, Ease: ease.InOutCubic}
}

// FocusZoom returns the zoom that frames a circle of the given radius on a
// width×height canvas. Degenerate radii are clamped to 1.
func FocusZoom(width, height, radius float64) float64 {
	return math.Min(width, height) / (2 * math.Max(radius, 1) * focusPadding)
}

// TransitionTo animates the camera to (x, y) at zoom over duration. A
// non-positive duration moves immediately.
func (c *Camera) TransitionTo(x, y, zoom float64, duration time.Duration) {
	if zoom <= 0 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		zoom = c.Zoom
	}
	if duration <= 0 {
		c.anim = nil
		c.X, c.Y, c.Zoom = x, y, zoom
		return
	}
	fn := c.Ease
	if fn == nil {
		fn = ease.InOutCubic
	}
	d := float32(duration.Seconds())
	c.anim = &cameraAnim{tweens: [3]*gween.Tween{
		gween.New(float32(c.X), float32(x), d, fn),
		gween.New(float32(c.Y), float32(y), d, fn),
		gween.New(float32(c.Zoom), float32(zoom), d, fn),
	}}
}

// Animating reports whether a transition is in progress.
func (c *Camera) Animating() bool {
	return c.anim != nil
}

// Update advances the active transition by dt.
func (c *Camera) Update(dt time.Duration) {
	if c.anim == nil {
		return
	}
	fields := [3]*float64{&c.X, &c.Y, &c.Zoom}
	step := float32(dt.Seconds())
	finished := true
	for i, tw := range c.anim.tweens {
		if c.anim.done[i] {
			continue
		}
		val, done := tw.Update(step)
		*fields[i] = float64(val)
		c.anim.done[i] = done
		finished = finished && done
	}
	if finished {
		c.anim = nil
	}
}
