package markers

import (
	"encoding/json"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// ReadLayoutFile loads a layout from a JSON array of {"id", "x", "y", "size"} records.
func ReadLayoutFile(path string) (*Layout, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading layout file")
	}
	var specs []MarkerSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, errors.Wrap(ErrInvalidLayout, err.Error())
	}
	return NewLayout(specs)
}

// WriteLayoutFile stores a layout in the format ReadLayoutFile reads.
func WriteLayoutFile(path string, layout *Layout) error {
	data, err := json.MarshalIndent(layout.Specs(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LayoutFromAttributes builds a layout from loosely typed records such as those found in a
// config file. Numbers given as strings are accepted.
func LayoutFromAttributes(attrs []map[string]interface{}) (*Layout, error) {
	var specs []MarkerSpec
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &specs,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrap(ErrInvalidLayout, err.Error())
	}
	return NewLayout(specs)
}

// LayoutSchema returns the JSON schema of a layout file.
func LayoutSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect([]MarkerSpec{})
	schema.Title = "marker layout"
	schema.Description = "markers lying in the world Z = 0 plane"
	return schema
}
