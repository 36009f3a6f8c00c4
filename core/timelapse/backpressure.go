package timelapse

import "github.com/ftl/wsprglobe/core"

// DefaultHeatmapWaitFrames is the number of frames a heatmap gets to materialize before the next one may replace it.
const DefaultHeatmapWaitFrames = 5

type heatmapState int

const (
	heatmapIdle heatmapState = iota
	heatmapWaiting
)

// backPressure holds back heatmap payloads until the visible one had enough frames to render.
// Idle -> Waiting(remaining, pending) -> Idle
type backPressure struct {
	budget    int
	state     heatmapState
	remaining int
	visible   *core.Payload
	pending   *core.Payload
}

func newBackPressure(budget int) backPressure {
	return backPressure{budget: budget}
}

func (b *backPressure) waiting() bool {
	return b.state == heatmapWaiting
}

// offer returns true if the payload may be shown now, otherwise it is kept as pending.
func (b *backPressure) offer(payload core.Payload) bool {
	if b.waiting() && b.visible != nil && len(b.visible.Heatmap) > 0 {
		b.pending = &payload
		return false
	}
	b.show(payload)
	return true
}

// show the payload regardless of the state and start waiting for it.
func (b *backPressure) show(payload core.Payload) {
	b.visible = &payload
	b.pending = nil
	b.startWaiting()
}

func (b *backPressure) startWaiting() {
	if b.budget <= 0 {
		b.state = heatmapIdle
		return
	}
	b.state = heatmapWaiting
	b.remaining = b.budget
}

// tick consumes one frame. hold is true as long as the window must not advance. swapped is the pending payload that
// replaced the visible one in this frame.
func (b *backPressure) tick() (hold bool, swapped *core.Payload) {
	if !b.waiting() {
		return false, nil
	}
	b.remaining--
	if b.remaining > 0 {
		return true, nil
	}
	if b.pending != nil {
		swapped = b.pending
		b.visible = b.pending
		b.pending = nil
		b.startWaiting()
		return true, swapped
	}
	b.state = heatmapIdle
	return true, nil
}

func (b *backPressure) clear() {
	b.state = heatmapIdle
	b.remaining = 0
	b.visible = nil
	b.pending = nil
}
