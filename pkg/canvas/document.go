// Package canvas defines the persisted canvas document and its JSON form.
//
// The JSON key names (strokeIds, layerId, activeLayerId, ...) are part of the
// project file format and must not change.
package canvas

import (
	"strings"

	"github.com/google/uuid"
)

// Default values for a fresh document.
const (
	DefaultLayerID = "layer-1"
	DefaultTool    = "pen"
	DefaultColor   = "#000000"
	DefaultWidth   = 2
)

// Point is one sample of a stroke. Pressure is only present for input
// devices that report it.
type Point struct {
	X        float32  `json:"x"`
	Y        float32  `json:"y"`
	Pressure *float32 `json:"pressure,omitempty"`
}

// Stroke is one freehand mark. Points are kept in drawing order.
type Stroke struct {
	ID        string  `json:"id"`
	Points    []Point `json:"points"`
	Color     string  `json:"color"`
	Width     float32 `json:"width"`
	LayerID   string  `json:"layerId"`
	Timestamp int64   `json:"timestamp"`
	// PathData is a precomputed rendering path, if the editor cached one.
	PathData string `json:"pathData,omitempty"`
}

// Layer groups strokes. StrokeIDs is the paint order.
type Layer struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Visible   bool     `json:"visible"`
	Locked    bool     `json:"locked"`
	Opacity   float32  `json:"opacity"`
	StrokeIDs []string `json:"strokeIds"`
}

// Camera is the viewport at the time the document was saved.
type Camera struct {
	X    float32 `json:"x"`
	Y    float32 `json:"y"`
	Zoom float32 `json:"zoom"`
}

// State is the whole persisted canvas document.
type State struct {
	Layers        []Layer           `json:"layers"`
	Strokes       map[string]Stroke `json:"strokes"`
	Camera        Camera            `json:"camera"`
	ActiveLayerID string            `json:"activeLayerId"`
	ActiveTool    string            `json:"activeTool"`
	ActiveColor   string            `json:"activeColor"`
	ActiveWidth   float32           `json:"activeWidth"`
}

// New returns the document a blank editor starts with: a single empty layer
// and the default pen.
func New() State {
	return State{
		Layers: []Layer{{
			ID:        DefaultLayerID,
			Name:      "Layer 1",
			Visible:   true,
			Opacity:   1,
			StrokeIDs: []string{},
		}},
		Strokes:       map[string]Stroke{},
		Camera:        Camera{Zoom: 1},
		ActiveLayerID: DefaultLayerID,
		ActiveTool:    DefaultTool,
		ActiveColor:   DefaultColor,
		ActiveWidth:   DefaultWidth,
	}
}

// NewID returns a unique identifier for a stroke or layer, e.g. "stroke-<uuid>".
func NewID(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return strings.TrimSuffix(prefix, "-") + "-" + id
}

// Layer returns the layer with the given id.
func (s *State) Layer(id string) (Layer, bool) {
	for _, l := range s.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}

// StrokesByLayer returns the strokes of a layer in paint order. Ids with no
// matching stroke are skipped.
func (s *State) StrokesByLayer(layerID string) []Stroke {
	l, ok := s.Layer(layerID)
	if !ok {
		return nil
	}
	out := make([]Stroke, 0, len(l.StrokeIDs))
	for _, id := range l.StrokeIDs {
		if st, ok := s.Strokes[id]; ok {
			out = append(out, st)
		}
	}
	return out
}

// Stats summarizes a document's size.
type Stats struct {
	Layers  int
	Strokes int
	Points  int
}

// Stats counts layers, strokes and points.
func (s *State) Stats() Stats {
	st := Stats{Layers: len(s.Layers), Strokes: len(s.Strokes)}
	for _, stroke := range s.Strokes {
		st.Points += len(stroke.Points)
	}
	return st
}
