package testsupport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// LoadGolden decodes the JSON file at path into v. Unknown keys fail so a
// renamed field cannot silently drop expectations from a scenario.
func LoadGolden(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("golden %s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("golden %s: %w", path, err)
	}
	return nil
}
