package grid

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gogrid/domain/core"
)

// Encode serializes a raw grid as a JSON array of {"A":..,"B":..,"C":..,"D":..}
// objects, the layout the grid has always been stored in.
func Encode(g RawGrid) ([]byte, error) {
	if g == nil {
		g = RawGrid{}
	}
	return json.Marshal(g)
}

// Decode parses a stored grid and normalizes it to the given row count.
// A rows value of 0 keeps whatever row count the payload carries.
func Decode(data []byte, rows int) (RawGrid, error) {
	var g RawGrid
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to decode grid: %w", err)
	}
	if rows <= 0 {
		rows = len(g)
	}
	return Normalize(g, rows), nil
}

// Fingerprint hashes the canonical encoding of a grid
func Fingerprint(g RawGrid) core.Hash {
	data, err := Encode(g)
	if err != nil {
		return ""
	}
	return core.NewHash(data)
}

// Value implements driver.Valuer so a RawGrid can be written to a JSON/JSONB column
func (g RawGrid) Value() (driver.Value, error) {
	return Encode(g)
}

// Scan implements sql.Scanner
func (g *RawGrid) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*g = RawGrid{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into grid", value)
	}

	if len(data) == 0 {
		*g = RawGrid{}
		return nil
	}

	decoded, err := Decode(data, 0)
	if err != nil {
		return err
	}
	*g = decoded
	return nil
}
