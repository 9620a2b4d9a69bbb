package tracer

import "sync/atomic"

// global holds the process-wide tracer handle enableTracing/disableTracing
// toggle. Spec §9 Design Notes calls this out explicitly as the one place
// streamflow accepts a package-level singleton: threading a *Tracer
// through every Subscribe call would be invasive, and this is the
// observability cut where that cost isn't worth it. Everywhere else in
// the package prefers an explicit value.
var global atomic.Pointer[Tracer]

// EnableTracing installs t as the global tracer every subsequent
// subscription observes. Passing a tracer that is already installed
// elsewhere is fine; tracers have no notion of ownership.
func EnableTracing(t *Tracer) {
	global.Store(t)
}

// DisableTracing removes the global tracer. Already-started traces are
// unaffected; new ones simply stop being recorded.
func DisableTracing() {
	global.Store(nil)
}

// GetGlobalTracer returns the currently installed global tracer, or nil
// if none is enabled.
func GetGlobalTracer() *Tracer {
	return global.Load()
}
