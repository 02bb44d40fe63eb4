// Package commands is the command surface the editor and the websocket
// server call into. It wraps the project store and turns its typed errors
// into messages fit for display.
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/folish/folish/pkg/canvas"
	"github.com/folish/folish/pkg/logging"
	"github.com/folish/folish/pkg/projectstore"
)

// Command names a callable operation.
type Command string

const (
	SaveCanvas   Command = "save_canvas"
	LoadCanvas   Command = "load_canvas"
	ListCanvases Command = "list_canvases"
	// UpdateCanvas replaces the live document without touching the disk.
	// The autosaver picks it up on its next tick.
	UpdateCanvas Command = "update_canvas"
)

// Args carries the arguments of any command. Unused fields are ignored.
type Args struct {
	Filename string        `json:"filename,omitempty"`
	Canvas   *canvas.State `json:"canvas,omitempty"`
}

// Result is delivered on the channel returned by Invoke. Value is the saved
// path (string), the loaded document (canvas.State), the project names
// ([]string) or nil, depending on the command.
type Result struct {
	Value interface{}
	Err   error
}

// Service runs commands against a project store.
type Service struct {
	store  *projectstore.Store
	logger *logging.Logger
	live   Live
}

// NewService creates a Service. A nil logger discards output.
func NewService(store *projectstore.Store, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{store: store, logger: logger}
}

// Store returns the underlying project store.
func (s *Service) Store() *projectstore.Store {
	return s.store
}

// Live returns the document most recently pushed with UpdateCanvas.
func (s *Service) Live() *Live {
	return &s.live
}

// SaveCanvas stores doc under filename and returns the path written.
func (s *Service) SaveCanvas(doc canvas.State, filename string) (string, error) {
	path, err := s.store.Save(filename, doc)
	if err != nil {
		s.logger.Warnf("save_canvas %q failed: %v", filename, err)
		return "", translate(SaveCanvas, filename, err)
	}
	return path, nil
}

// LoadCanvas returns the document stored under filename.
func (s *Service) LoadCanvas(filename string) (canvas.State, error) {
	doc, err := s.store.Load(filename)
	if err != nil {
		s.logger.Warnf("load_canvas %q failed: %v", filename, err)
		return canvas.State{}, translate(LoadCanvas, filename, err)
	}
	return doc, nil
}

// ListCanvases returns the saved project names in ascending order.
func (s *Service) ListCanvases() ([]string, error) {
	names, err := s.store.List()
	if err != nil {
		s.logger.Warnf("list_canvases failed: %v", err)
		return nil, translate(ListCanvases, "", err)
	}
	return names, nil
}

// Call runs cmd synchronously.
func (s *Service) Call(cmd Command, args Args) (interface{}, error) {
	switch cmd {
	case SaveCanvas:
		if args.Canvas == nil {
			return nil, newError(cmd, nil, "Missing argument: canvas")
		}
		return s.SaveCanvas(*args.Canvas, args.Filename)
	case LoadCanvas:
		return s.LoadCanvas(args.Filename)
	case ListCanvases:
		return s.ListCanvases()
	case UpdateCanvas:
		if args.Canvas == nil {
			return nil, newError(cmd, nil, "Missing argument: canvas")
		}
		s.live.Set(*args.Canvas)
		return nil, nil
	default:
		return nil, newError(cmd, nil, "Unknown command: %s", cmd)
	}
}

// Invoke runs cmd on its own goroutine. The returned channel receives
// exactly one Result and is then closed.
func (s *Service) Invoke(cmd Command, args Args) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		v, err := s.Call(cmd, args)
		out <- Result{Value: v, Err: err}
	}()
	return out
}

// DecodeArgs parses the JSON argument object of a command. A canvas
// argument goes through canvas.Decode, so missing fields are reported the
// same way they are for files on disk.
func DecodeArgs(raw json.RawMessage) (Args, error) {
	var wire struct {
		Filename string          `json:"filename"`
		Canvas   json.RawMessage `json:"canvas"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &wire); err != nil {
			return Args{}, fmt.Errorf("invalid arguments: %w", err)
		}
	}

	args := Args{Filename: wire.Filename}
	if len(wire.Canvas) > 0 && string(wire.Canvas) != "null" {
		doc, err := canvas.Decode(wire.Canvas)
		if err != nil {
			return Args{}, fmt.Errorf("invalid canvas argument: %w", err)
		}
		args.Canvas = &doc
	}
	return args, nil
}
