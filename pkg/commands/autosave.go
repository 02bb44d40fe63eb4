package commands

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/folish/folish/pkg/canvas"
	"github.com/folish/folish/pkg/config"
	"github.com/folish/folish/pkg/logging"
)

// Snapshot returns the document currently open in the editor, or false
// when no document is open.
type Snapshot func() (canvas.State, bool)

// Autosaver periodically saves the open document under a fixed name. A tick
// whose document encodes to the same JSON as the last successful save is
// skipped.
type Autosaver struct {
	svc      *Service
	snapshot Snapshot
	name     string
	interval time.Duration
	logger   *logging.Logger

	mu   sync.Mutex
	last []byte
}

// NewAutosaver creates an Autosaver from the autosave settings. The
// Enabled flag is not consulted; the interval and name are validated.
func NewAutosaver(svc *Service, snapshot Snapshot, cfg config.AutosaveConfig, logger *logging.Logger) (*Autosaver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("autosave: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Autosaver{
		svc:      svc,
		snapshot: snapshot,
		name:     cfg.Name,
		interval: cfg.Interval,
		logger:   logger,
	}, nil
}

// Name returns the project name autosaves are written to.
func (a *Autosaver) Name() string {
	return a.name
}

// SaveNow saves the current snapshot unless it is unchanged or there is
// none. It reports whether a file was written.
func (a *Autosaver) SaveNow() (bool, error) {
	// The snapshot is taken under the lock so concurrent calls save in the
	// order they observed the document.
	a.mu.Lock()
	defer a.mu.Unlock()

	doc, ok := a.snapshot()
	if !ok {
		return false, nil
	}
	encoded, err := canvas.Encode(doc)
	if err != nil {
		return false, fmt.Errorf("autosave: %w", err)
	}

	if a.last != nil && bytes.Equal(encoded, a.last) {
		return false, nil
	}
	if _, err := a.svc.SaveCanvas(doc, a.name); err != nil {
		return false, err
	}
	a.last = encoded
	return true, nil
}

// Run saves every interval until ctx is done. Failures are logged and the
// next tick tries again.
func (a *Autosaver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Infof("autosave every %s to %q", a.interval, a.name)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			saved, err := a.SaveNow()
			switch {
			case err != nil:
				a.logger.Errorf("autosave failed: %v", err)
			case saved:
				a.logger.Debugf("autosaved %q", a.name)
			}
		}
	}
}
