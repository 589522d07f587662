package markers

import (
	"context"
	"encoding/json"
	"image"
	"os"
	"path/filepath"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Detection is one marker found in an image: its id and its 4 corners in pixels, in the same
// order as the layout corners.
type Detection struct {
	ID      int
	Corners [4]r2.Point
}

type detectionJSON struct {
	ID      int          `json:"id"`
	Corners [][2]float64 `json:"corners"`
}

// MarshalJSON encodes corners as [[x, y], ...].
func (d Detection) MarshalJSON() ([]byte, error) {
	out := detectionJSON{ID: d.ID, Corners: make([][2]float64, 4)}
	for i, c := range d.Corners {
		out.Corners[i] = [2]float64{c.X, c.Y}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes corners given as [[x, y], ...].
func (d *Detection) UnmarshalJSON(data []byte) error {
	var in detectionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.Corners) != 4 {
		return errors.Errorf("detection %d has %d corners, need 4", in.ID, len(in.Corners))
	}
	d.ID = in.ID
	for i, c := range in.Corners {
		d.Corners[i] = r2.Point{X: c[0], Y: c[1]}
	}
	return nil
}

// Center is the mean of the corners.
func (d Detection) Center() r2.Point {
	var c r2.Point
	for _, p := range d.Corners {
		c = c.Add(p)
	}
	return c.Mul(0.25)
}

// A Detector finds markers in an image. Marker detection itself lives outside this module.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// DetectorFunc adapts a function to a Detector.
type DetectorFunc func(ctx context.Context, img image.Image) ([]Detection, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	return f(ctx, img)
}

// StaticDetector always reports the same detections.
type StaticDetector []Detection

// Detect returns the stored detections.
func (s StaticDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	out := make([]Detection, len(s))
	copy(out, s)
	return out, nil
}

// DetectionTable holds precomputed detections keyed by frame source (usually the image file name).
type DetectionTable map[string][]Detection

// ReadDetectionsFile loads a DetectionTable from JSON: {"frame.png": [{"id": 1, "corners": [[x, y], ...]}]}.
func ReadDetectionsFile(path string) (DetectionTable, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading detections file")
	}
	var table DetectionTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, errors.Wrapf(err, "error parsing detections file %q", path)
	}
	return table, nil
}

// ForSource returns a detector for one frame source. Unknown sources detect nothing.
func (t DetectionTable) ForSource(source string) Detector {
	return StaticDetector(t[source])
}

type sourceKey struct{}

// ContextWithSource tags ctx with the source name of the frame being processed.
func ContextWithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFromContext returns the frame source set by ContextWithSource.
func SourceFromContext(ctx context.Context) (string, bool) {
	source, ok := ctx.Value(sourceKey{}).(string)
	return source, ok
}

// Detect looks up the frame source carried by ctx. A source is matched by its full name first and then by
// its base name.
func (t DetectionTable) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	source, ok := SourceFromContext(ctx)
	if !ok {
		return nil, errors.New("detection table needs a frame source in the context")
	}
	dets, ok := t[source]
	if !ok {
		dets = t[filepath.Base(source)]
	}
	out := make([]Detection, len(dets))
	copy(out, dets)
	return out, nil
}
