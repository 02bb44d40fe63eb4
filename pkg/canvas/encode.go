package canvas

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrFormat is returned when a document does not have the expected shape.
	ErrFormat = errors.New("canvas: invalid document")
	// ErrEncode is returned when a document holds values JSON cannot
	// represent, such as NaN or infinite coordinates.
	ErrEncode = errors.New("canvas: cannot encode document")
)

// Encode renders s as compact JSON. Nil collections are written as empty
// ones so that the output always decodes. Stroke keys come out sorted, which
// makes the encoding deterministic.
func Encode(s State) ([]byte, error) {
	b, err := json.Marshal(normalize(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return b, nil
}

// normalize returns a shallow copy of s with nil slices and maps replaced by
// empty ones. The caller's value is not modified.
func normalize(s State) State {
	out := s
	out.Layers = make([]Layer, len(s.Layers))
	for i, l := range s.Layers {
		if l.StrokeIDs == nil {
			l.StrokeIDs = []string{}
		}
		out.Layers[i] = l
	}
	out.Strokes = make(map[string]Stroke, len(s.Strokes))
	for id, st := range s.Strokes {
		if st.Points == nil {
			st.Points = []Point{}
		}
		out.Strokes[id] = st
	}
	return out
}

// The wire types mirror the document with pointer fields so that a missing
// or null field can be told apart from a zero value. Keys are matched
// exactly; encoding/json alone would also accept "CAMERA" or "layerid".

type wirePoint struct {
	X        *float32
	Y        *float32
	Pressure *float32
}

func (w *wirePoint) UnmarshalJSON(data []byte) error {
	return decodeFields(data, map[string]interface{}{
		"x":        &w.X,
		"y":        &w.Y,
		"pressure": &w.Pressure,
	})
}

type wireStroke struct {
	ID        *string
	Points    *[]wirePoint
	Color     *string
	Width     *float32
	LayerID   *string
	Timestamp *int64
	PathData  *string
}

func (w *wireStroke) UnmarshalJSON(data []byte) error {
	return decodeFields(data, map[string]interface{}{
		"id":        &w.ID,
		"points":    &w.Points,
		"color":     &w.Color,
		"width":     &w.Width,
		"layerId":   &w.LayerID,
		"timestamp": &w.Timestamp,
		"pathData":  &w.PathData,
	})
}

type wireLayer struct {
	ID        *string
	Name      *string
	Visible   *bool
	Locked    *bool
	Opacity   *float32
	StrokeIDs *[]string
}

func (w *wireLayer) UnmarshalJSON(data []byte) error {
	return decodeFields(data, map[string]interface{}{
		"id":        &w.ID,
		"name":      &w.Name,
		"visible":   &w.Visible,
		"locked":    &w.Locked,
		"opacity":   &w.Opacity,
		"strokeIds": &w.StrokeIDs,
	})
}

type wireCamera struct {
	X    *float32
	Y    *float32
	Zoom *float32
}

func (w *wireCamera) UnmarshalJSON(data []byte) error {
	return decodeFields(data, map[string]interface{}{
		"x":    &w.X,
		"y":    &w.Y,
		"zoom": &w.Zoom,
	})
}

type wireState struct {
	Layers        *[]wireLayer
	Strokes       *map[string]wireStroke
	Camera        *wireCamera
	ActiveLayerID *string
	ActiveTool    *string
	ActiveColor   *string
	ActiveWidth   *float32
}

func (w *wireState) UnmarshalJSON(data []byte) error {
	return decodeFields(data, map[string]interface{}{
		"layers":        &w.Layers,
		"strokes":       &w.Strokes,
		"camera":        &w.Camera,
		"activeLayerId": &w.ActiveLayerID,
		"activeTool":    &w.ActiveTool,
		"activeColor":   &w.ActiveColor,
		"activeWidth":   &w.ActiveWidth,
	})
}

// decodeFields unmarshals the members of a JSON object whose key is exactly
// one of the keys of fields. Other members are ignored. A null object leaves
// every field unset.
func decodeFields(data []byte, fields map[string]interface{}) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for key, dst := range fields {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	return nil
}

// Decode parses a JSON document. Keys must match the file vocabulary
// exactly. Unknown fields are ignored; missing, null or mistyped required
// fields fail with ErrFormat and the zero State.
func Decode(data []byte) (State, error) {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	s, err := w.state()
	if err != nil {
		return State{}, err
	}
	return s, nil
}

// fieldChecker collects the first missing required field.
type fieldChecker struct {
	missing string
}

func (c *fieldChecker) need(present bool, path string) {
	if !present && c.missing == "" {
		c.missing = path
	}
}

func (c *fieldChecker) err() error {
	if c.missing == "" {
		return nil
	}
	return fmt.Errorf("%w: missing field %s", ErrFormat, c.missing)
}

func (w *wireState) state() (State, error) {
	var c fieldChecker
	c.need(w.Layers != nil, "layers")
	c.need(w.Strokes != nil, "strokes")
	c.need(w.Camera != nil, "camera")
	c.need(w.ActiveLayerID != nil, "activeLayerId")
	c.need(w.ActiveTool != nil, "activeTool")
	c.need(w.ActiveColor != nil, "activeColor")
	c.need(w.ActiveWidth != nil, "activeWidth")
	if err := c.err(); err != nil {
		return State{}, err
	}

	cam, err := w.Camera.camera()
	if err != nil {
		return State{}, err
	}

	layers := make([]Layer, 0, len(*w.Layers))
	for i, wl := range *w.Layers {
		l, err := wl.layer("layers[" + strconv.Itoa(i) + "]")
		if err != nil {
			return State{}, err
		}
		layers = append(layers, l)
	}

	strokes := make(map[string]Stroke, len(*w.Strokes))
	for key, ws := range *w.Strokes {
		st, err := ws.stroke("strokes[" + strconv.Quote(key) + "]")
		if err != nil {
			return State{}, err
		}
		strokes[key] = st
	}

	return State{
		Layers:        layers,
		Strokes:       strokes,
		Camera:        cam,
		ActiveLayerID: *w.ActiveLayerID,
		ActiveTool:    *w.ActiveTool,
		ActiveColor:   *w.ActiveColor,
		ActiveWidth:   *w.ActiveWidth,
	}, nil
}

func (w *wireCamera) camera() (Camera, error) {
	var c fieldChecker
	c.need(w.X != nil, "camera.x")
	c.need(w.Y != nil, "camera.y")
	c.need(w.Zoom != nil, "camera.zoom")
	if err := c.err(); err != nil {
		return Camera{}, err
	}
	return Camera{X: *w.X, Y: *w.Y, Zoom: *w.Zoom}, nil
}

func (w *wireLayer) layer(path string) (Layer, error) {
	var c fieldChecker
	c.need(w.ID != nil, path+".id")
	c.need(w.Name != nil, path+".name")
	c.need(w.Visible != nil, path+".visible")
	c.need(w.Locked != nil, path+".locked")
	c.need(w.Opacity != nil, path+".opacity")
	c.need(w.StrokeIDs != nil, path+".strokeIds")
	if err := c.err(); err != nil {
		return Layer{}, err
	}
	return Layer{
		ID:        *w.ID,
		Name:      *w.Name,
		Visible:   *w.Visible,
		Locked:    *w.Locked,
		Opacity:   *w.Opacity,
		StrokeIDs: *w.StrokeIDs,
	}, nil
}

func (w *wireStroke) stroke(path string) (Stroke, error) {
	var c fieldChecker
	c.need(w.ID != nil, path+".id")
	c.need(w.Points != nil, path+".points")
	c.need(w.Color != nil, path+".color")
	c.need(w.Width != nil, path+".width")
	c.need(w.LayerID != nil, path+".layerId")
	c.need(w.Timestamp != nil, path+".timestamp")
	if err := c.err(); err != nil {
		return Stroke{}, err
	}

	points := make([]Point, 0, len(*w.Points))
	for i, wp := range *w.Points {
		var pc fieldChecker
		pp := path + ".points[" + strconv.Itoa(i) + "]"
		pc.need(wp.X != nil, pp+".x")
		pc.need(wp.Y != nil, pp+".y")
		if err := pc.err(); err != nil {
			return Stroke{}, err
		}
		points = append(points, Point{X: *wp.X, Y: *wp.Y, Pressure: wp.Pressure})
	}

	st := Stroke{
		ID:        *w.ID,
		Points:    points,
		Color:     *w.Color,
		Width:     *w.Width,
		LayerID:   *w.LayerID,
		Timestamp: *w.Timestamp,
	}
	if w.PathData != nil {
		st.PathData = *w.PathData
	}
	return st, nil
}
