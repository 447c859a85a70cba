//go:build !nogpu

package gpu

import (
	"log/slog"
	"sync/atomic"
)

// The gpu backend logs through the logger handed over by grayscale.Open or
// Converter.SetLogger. Messages are prefixed "gpu:".
//
//   - Debug: platforms and adapters skipped during selection, dispatch
//     sizes, submission index, kernel build, every released object, the
//     known-answer dispatch on CPU adapters
//   - Info: the selected device, or the shared device from a provider
//   - Warn: WaitIdle or UnmapBuffer failures during release and readback
//
// Nothing is logged at Error level; failures are returned as
// *grayscale.Error instead.

var discard = slog.New(slog.DiscardHandler)

// current is swapped as a whole so a dispatch in flight keeps a consistent
// logger while SetLogger runs.
var current atomic.Pointer[slog.Logger]

func init() { current.Store(discard) }

func slogger() *slog.Logger { return current.Load() }

// setLogger installs l, or silences the package when l is nil.
func setLogger(l *slog.Logger) {
	if l == nil {
		l = discard
	}
	current.Store(l)
}
