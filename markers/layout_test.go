package markers

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func testLayout(t *testing.T) *Layout {
	t.Helper()
	layout, err := NewLayout([]MarkerSpec{
		{ID: 7, X: 0, Y: 0, Size: 5},
		{ID: 3, X: 10, Y: 0, Size: 5},
		{ID: 12, X: 0, Y: 10, Size: 2.5},
	})
	test.That(t, err, test.ShouldBeNil)
	return layout
}

func TestNewLayout(t *testing.T) {
	layout := testLayout(t)
	test.That(t, layout.Len(), test.ShouldEqual, 3)
	test.That(t, layout.IDs(), test.ShouldResemble, []int{7, 3, 12})
	test.That(t, layout.Has(3), test.ShouldBeTrue)
	test.That(t, layout.Has(4), test.ShouldBeFalse)

	corners, ok := layout.Corners(3)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, corners, test.ShouldResemble, [4]r3.Vector{
		{X: 10, Y: 0}, {X: 15, Y: 0}, {X: 15, Y: 5}, {X: 10, Y: 5},
	})
	for _, c := range corners {
		test.That(t, c.Z, test.ShouldEqual, 0.)
	}

	anchor, size, ok := layout.Anchor(12)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, anchor, test.ShouldResemble, r3.Vector{X: 0, Y: 10})
	test.That(t, size, test.ShouldEqual, 2.5)

	_, ok = layout.Corners(99)
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = layout.Marker(99)
	test.That(t, ok, test.ShouldBeFalse)

	// IDs returns a copy
	ids := layout.IDs()
	ids[0] = 1000
	test.That(t, layout.IDs()[0], test.ShouldEqual, 7)
}

func TestNewLayoutInvalid(t *testing.T) {
	for name, specs := range map[string][]MarkerSpec{
		"empty":       nil,
		"negative id": {{ID: -1, Size: 1}},
		"duplicate":   {{ID: 1, Size: 1}, {ID: 1, X: 4, Size: 1}},
		"zero size":   {{ID: 1, Size: 0}},
		"nan":         {{ID: 1, X: math.NaN(), Size: 1}},
		"inf":         {{ID: 1, Y: math.Inf(1), Size: 1}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewLayout(specs)
			test.That(t, errors.Is(err, ErrInvalidLayout), test.ShouldBeTrue)
		})
	}
}

func TestLayoutFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.json")
	test.That(t, WriteLayoutFile(path, testLayout(t)), test.ShouldBeNil)

	loaded, err := ReadLayoutFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Specs(), test.ShouldResemble, testLayout(t).Specs())

	bad := filepath.Join(dir, "bad.json")
	test.That(t, os.WriteFile(bad, []byte(`[{"id": 1, "x": 0, "y": 0, "size": -2}]`), 0o600), test.ShouldBeNil)
	_, err = ReadLayoutFile(bad)
	test.That(t, errors.Is(err, ErrInvalidLayout), test.ShouldBeTrue)

	test.That(t, os.WriteFile(bad, []byte(`{"id": 1}`), 0o600), test.ShouldBeNil)
	_, err = ReadLayoutFile(bad)
	test.That(t, errors.Is(err, ErrInvalidLayout), test.ShouldBeTrue)

	_, err = ReadLayoutFile(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLayoutFromAttributes(t *testing.T) {
	layout, err := LayoutFromAttributes([]map[string]interface{}{
		{"id": 1, "x": 0.0, "y": 0, "size": 4},
		{"id": "2", "x": "8", "y": "0", "size": "4"},
	})
	test.That(t, err, test.ShouldBeNil)
	corners, ok := layout.Corners(2)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, corners[2], test.ShouldResemble, r3.Vector{X: 12, Y: 4})

	_, err = LayoutFromAttributes([]map[string]interface{}{{"id": 1, "size": 1, "color": "red"}})
	test.That(t, errors.Is(err, ErrInvalidLayout), test.ShouldBeTrue)
}

func TestLayoutSchema(t *testing.T) {
	data, err := json.Marshal(LayoutSchema())
	test.That(t, err, test.ShouldBeNil)
	var decoded map[string]interface{}
	test.That(t, json.Unmarshal(data, &decoded), test.ShouldBeNil)
	test.That(t, decoded["type"], test.ShouldEqual, "array")
	items, ok := decoded["items"].(map[string]interface{})
	test.That(t, ok, test.ShouldBeTrue)
	props, ok := items["properties"].(map[string]interface{})
	test.That(t, ok, test.ShouldBeTrue)
	for _, key := range []string{"id", "x", "y", "size"} {
		test.That(t, props, test.ShouldContainKey, key)
	}
}
