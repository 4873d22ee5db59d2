// Package visibility tracks whether a page element is within the viewport and
// renders the matching reveal attributes for the browser side.
package visibility

import (
	"strconv"
	"sync"

	"github.com/a-h/templ"
)

type State int

const (
	NotInView State = iota
	InView
)

func (s State) String() string {
	if s == InView {
		return "in_view"
	}
	return "not_in_view"
}

// Options configure how a target is observed.
type Options struct {
	// Once makes InView terminal: the subscription is released on first entry.
	Once bool
	// Margin insets or grows the viewport, in CSS margin syntax ("0px -10% 0px 0px").
	Margin string
	// Threshold is the visible fraction in [0, 1] needed to count as in view.
	Threshold float64
}

// Entry is one intersection change reported by a source.
type Entry struct {
	Target            string
	IsIntersecting    bool
	IntersectionRatio float64
}

// IntersectionSource delivers intersection changes for a target until the
// returned function is called.
type IntersectionSource interface {
	Subscribe(target string, opts Options, fn func(Entry)) (unsubscribe func())
}

// Tracker follows one target at a time.
type Tracker struct {
	source   IntersectionSource
	onChange func(State)

	mu          sync.Mutex
	target      string
	opts        Options
	state       State
	unsubscribe func()
	generation  uint64
	closed      bool
}

// NewTracker returns a tracker that reports state changes to onChange, which may be nil.
func NewTracker(source IntersectionSource, onChange func(State)) *Tracker {
	return &Tracker{source: source, onChange: onChange}
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Subscribed reports whether the tracker currently holds a subscription.
func (t *Tracker) Subscribed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unsubscribe != nil
}

// Observe starts following target. Calling it again with the same target and
// options is a no-op; a new target starts over from NotInView.
func (t *Tracker) Observe(target string, opts Options) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	sameTarget := target == t.target
	if sameTarget && opts == t.opts && (t.unsubscribe != nil || t.done()) {
		t.mu.Unlock()
		return
	}

	release := t.detach()
	var changed bool
	if !sameTarget && t.state == InView {
		t.state = NotInView
		changed = true
	}
	t.target = target
	t.opts = opts
	subscribe := target != "" && !t.done()
	generation := t.generation
	t.mu.Unlock()

	if release != nil {
		release()
	}
	if changed {
		t.notify(NotInView)
	}
	if !subscribe {
		return
	}

	unsubscribe := t.source.Subscribe(target, opts, func(e Entry) {
		t.handle(generation, e)
	})

	t.mu.Lock()
	if t.closed || t.generation != generation || t.done() {
		// Closed, retargeted or finished while subscribing.
		t.mu.Unlock()
		unsubscribe()
		return
	}
	t.unsubscribe = unsubscribe
	t.mu.Unlock()
}

// Close releases the subscription. The tracker ignores all later events.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	release := t.detach()
	t.mu.Unlock()

	if release != nil {
		release()
	}
}

func (t *Tracker) handle(generation uint64, e Entry) {
	t.mu.Lock()
	if t.closed || generation != t.generation || t.done() {
		t.mu.Unlock()
		return
	}

	visible := e.IsIntersecting && e.IntersectionRatio >= t.opts.Threshold
	var (
		next    State
		changed bool
		release func()
	)
	switch {
	case visible && t.state == NotInView:
		t.state = InView
		next, changed = InView, true
		if t.opts.Once {
			release = t.detach()
		}
	case !visible && t.state == InView:
		t.state = NotInView
		next, changed = NotInView, true
	}
	t.mu.Unlock()

	if release != nil {
		release()
	}
	if changed {
		t.notify(next)
	}
}

// done reports whether a once-only observation has finished. Caller holds mu.
func (t *Tracker) done() bool {
	return t.opts.Once && t.state == InView
}

// detach drops the current subscription and invalidates its callbacks. The
// returned func must be called without holding mu. Caller holds mu.
func (t *Tracker) detach() func() {
	t.generation++
	release := t.unsubscribe
	t.unsubscribe = nil
	return release
}

func (t *Tracker) notify(state State) {
	if t.onChange != nil {
		t.onChange(state)
	}
}

// Attributes renders the options as data-reveal-* attributes read by the page's
// reveal script.
func (o Options) Attributes() templ.Attributes {
	attrs := templ.Attributes{
		"data-reveal":           "",
		"data-reveal-threshold": strconv.FormatFloat(clampThreshold(o.Threshold), 'f', -1, 64),
	}
	if o.Once {
		attrs["data-reveal-once"] = "true"
	}
	if o.Margin != "" {
		attrs["data-reveal-margin"] = o.Margin
	}
	return attrs
}

func clampThreshold(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
