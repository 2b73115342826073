package models

import (
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
)

// JSONBMap is a custom type for JSONB columns.
type JSONBMap map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
func (j JSONBMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (j *JSONBMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONBMap)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return errors.New("failed to scan JSONBMap: value is not []byte or string")
		}
		bytes = []byte(s)
	}

	if len(bytes) == 0 {
		*j = make(JSONBMap)
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Get retrieves a value from the map with type assertion.
func (j JSONBMap) Get(key string) (interface{}, bool) {
	val, ok := j[key]
	return val, ok
}

// GetString retrieves a string value from the map.
func (j JSONBMap) GetString(key string) string {
	if val, ok := j[key].(string); ok {
		return val
	}
	return ""
}

// GetBool retrieves a bool value from the map.
func (j JSONBMap) GetBool(key string) bool {
	if val, ok := j[key].(bool); ok {
		return val
	}
	return false
}

// Set sets a value in the map.
func (j JSONBMap) Set(key string, value interface{}) {
	j[key] = value
}

// StringArray is a custom type for PostgreSQL TEXT[] columns. No model in
// this package has a field of this type.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	bytes, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	s := string(bytes)
	if len(s) >= 2 {
		return "{" + s[1:len(s)-1] + "}", nil
	}
	return "{}", nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = make(StringArray, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan StringArray: unexpected type")
	}

	if len(bytes) == 0 || string(bytes) == "{}" {
		*a = make(StringArray, 0)
		return nil
	}

	s := string(bytes)
	if len(s) >= 2 && s[0] == '{' && s[len(s)-1] == '}' {
		jsonStr := "[" + s[1:len(s)-1] + "]"
		return json.Unmarshal([]byte(jsonStr), a)
	}

	return errors.New("invalid PostgreSQL array format")
}

// Geometry wraps an orb.Geometry for storage in PostGIS geometry(*, 4326)
// columns. PostGIS accepts and returns hex-encoded EWKB for geometry values
// exchanged over the text wire protocol, which is what this type marshals to
// and parses from.
type Geometry struct {
	orb.Geometry
}

// NewGeometry wraps a geometry for persistence.
func NewGeometry(g orb.Geometry) Geometry {
	return Geometry{Geometry: g}
}

// Value implements the driver.Valuer interface.
func (g Geometry) Value() (driver.Value, error) {
	if g.Geometry == nil {
		return nil, nil
	}
	data, err := ewkb.Marshal(g.Geometry, 4326)
	if err != nil {
		return nil, err
	}
	return hex.EncodeToString(data), nil
}

// Scan implements the sql.Scanner interface.
func (g *Geometry) Scan(value interface{}) error {
	if value == nil {
		g.Geometry = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("models: cannot scan geometry value")
	}

	data, err := hex.DecodeString(string(raw))
	if err != nil {
		return err
	}

	geom, err := ewkb.Unmarshal(data)
	if err != nil {
		return err
	}
	g.Geometry = geom
	return nil
}

// IsEmpty reports whether the wrapped geometry is absent.
func (g Geometry) IsEmpty() bool {
	return g.Geometry == nil
}
