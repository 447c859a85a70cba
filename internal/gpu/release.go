//go:build !nogpu

package gpu

// releaser destroys device objects in reverse creation order.
//
// Each constructor pushes the matching destroy call right after the object
// is created, so an error at any later step unwinds exactly what exists.
type releaser struct {
	labels []string
	fns    []func()
}

// push records fn to run on release.
func (r *releaser) push(label string, fn func()) {
	r.labels = append(r.labels, label)
	r.fns = append(r.fns, fn)
}

// len returns the number of pending releases.
func (r *releaser) len() int { return len(r.fns) }

// release runs every pending destroy call, last pushed first, and empties
// the stack. It is safe to call more than once.
func (r *releaser) release() {
	for i := len(r.fns) - 1; i >= 0; i-- {
		slogger().Debug("gpu: release", "object", r.labels[i])
		r.fns[i]()
	}
	r.labels = r.labels[:0]
	r.fns = r.fns[:0]
}

// adopt moves every pending release of other on top of r, leaving other
// empty. Used when a scope succeeds and its objects outlive it.
func (r *releaser) adopt(other *releaser) {
	r.labels = append(r.labels, other.labels...)
	r.fns = append(r.fns, other.fns...)
	other.labels = other.labels[:0]
	other.fns = other.fns[:0]
}
