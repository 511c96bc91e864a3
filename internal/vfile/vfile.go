// Package vfile implements the virtual file registry of §6.4: synthesized
// content (AINSERT buffers, preprocessor output, macro-generated source) is
// published under a `hlasm://<id>/<name>.hlasm` URI so it can be referenced
// as a first-class file by diagnostics and navigation, while the owning
// monitor (an LSP-side content provider in the real deployment) holds the
// authoritative {handle, content-view} and the core keeps only weak
// references via Generation-stamped snapshots.
package vfile

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// Handle identifies one virtual file's registry slot.
type Handle uint32

// URI returns the `hlasm://<id>/<name>.hlasm` form for a registered file,
// built once at registration time and immutable thereafter.
type URI string

// ContentView is a generation-stamped snapshot of a virtual file's text.
// Consumers compare Generation against the registry's current value for the
// same Handle to detect staleness without holding a lock across use (§9 "an
// atomic generation counter invalidates cached content-views without
// requiring callers to hold a lock").
type ContentView struct {
	Text       string
	Generation int64
}

// entry is one registered virtual file.
type entry struct {
	uri  URI
	name string
	gen  atomic.Int64
	text string
}

// Registry is the monitor-facing store of virtual files. Registry is safe
// for concurrent reads of published content-views (§6.4's "the monitor
// interface is the one structure the spec allows concurrent readers
// against"); mutation (Publish) is expected to be single-writer, consistent
// with the owning analysis context being the sole producer of synthesized
// content.
type Registry struct {
	entries []*entry
	byURI   map[URI]Handle
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{byURI: make(map[URI]Handle)}
}

// Mint allocates a new virtual file named name (e.g. "AINSERT", a COPY
// member name, or a macro-generated source name) and returns its Handle and
// URI. The identifier segment is a fresh UUID so concurrently synthesized
// files never collide, even across analysis contexts sharing one workspace
// (§6.4, §4.I "unique virtual URIs").
func (r *Registry) Mint(name string) (Handle, URI) {
	id := uuid.New()
	u := URI(fmt.Sprintf("hlasm://%s/%s.hlasm", id.String(), name))
	e := &entry{uri: u, name: name}
	h := Handle(len(r.entries))
	r.entries = append(r.entries, e)
	r.byURI[u] = h
	return h, u
}

// Publish stores new text for h, bumping its generation counter so existing
// ContentViews are observably stale.
func (r *Registry) Publish(h Handle, text string) ContentView {
	e := r.entries[h]
	gen := e.gen.Inc()
	e.text = text
	return ContentView{Text: text, Generation: gen}
}

// View returns the current content-view for h.
func (r *Registry) View(h Handle) ContentView {
	e := r.entries[h]
	return ContentView{Text: e.text, Generation: e.gen.Load()}
}

// URI returns the URI minted for h.
func (r *Registry) URI(h Handle) URI { return r.entries[h].uri }

// Name returns the display name minted for h.
func (r *Registry) Name(h Handle) string { return r.entries[h].name }

// Lookup resolves a URI back to its Handle, for diagnostics or "go to
// definition" requests that only carry the URI.
func (r *Registry) Lookup(u URI) (Handle, bool) {
	h, ok := r.byURI[u]
	return h, ok
}

// Stale reports whether view no longer matches h's current generation.
func (r *Registry) Stale(h Handle, view ContentView) bool {
	return r.entries[h].gen.Load() != view.Generation
}
