package commands

import (
	"sync"

	"github.com/folish/folish/pkg/canvas"
)

// Live holds the document currently open in a connected editor.
type Live struct {
	mu  sync.Mutex
	doc canvas.State
	set bool
}

// Set replaces the live document.
func (l *Live) Set(doc canvas.State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.doc = doc
	l.set = true
}

// Snapshot returns the live document, or false if none was pushed yet. It
// satisfies Snapshot.
func (l *Live) Snapshot() (canvas.State, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doc, l.set
}
