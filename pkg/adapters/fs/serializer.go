package fs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/dispensa/pkg/core"
)

// Serializer defines how document fields are stored in one file format.
type Serializer interface {
	// Parse reads the fields of a document from r.
	Parse(r io.Reader) (core.Fields, error)
	// Serialize converts the fields to bytes.
	Serialize(fields core.Fields) ([]byte, error)
}

// DefaultSerializers returns the serializers keyed by file extension.
func DefaultSerializers() map[string]Serializer {
	return map[string]Serializer{
		".json": JSONSerializer{},
		".yaml": YAMLSerializer{},
		".yml":  YAMLSerializer{},
	}
}

// --- JSON Serializer ---

// JSONSerializer reads numbers as json.Number so item ids keep their precision.
type JSONSerializer struct{}

func (JSONSerializer) Parse(r io.Reader) (core.Fields, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if payload == nil {
		payload = make(map[string]any)
	}
	return core.Fields(payload), nil
}

func (JSONSerializer) Serialize(fields core.Fields) ([]byte, error) {
	if fields == nil {
		fields = core.Fields{}
	}
	return json.MarshalIndent(map[string]any(fields), "", "  ")
}

// --- YAML Serializer ---

type YAMLSerializer struct{}

func (YAMLSerializer) Parse(r io.Reader) (core.Fields, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if payload == nil {
		payload = make(map[string]any)
	}
	return recursiveNormalize(payload).(map[string]any), nil
}

func (YAMLSerializer) Serialize(fields core.Fields) ([]byte, error) {
	// Round trip through JSON so json.Number values from other files are
	// written as plain YAML numbers.
	data, err := json.Marshal(map[string]any(fields))
	if err != nil {
		return nil, err
	}
	var plain map[string]any
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, err
	}
	return yaml.Marshal(plain)
}

// recursiveNormalize converts YAML numbers to json.Number and any
// map[any]any left by the decoder to map[string]any, so both formats
// decode to the same shapes.
func recursiveNormalize(val any) any {
	switch v := val.(type) {
	case core.Fields:
		return recursiveNormalize(map[string]any(v))
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, val := range v {
			m[k] = recursiveNormalize(val)
		}
		return m
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, val := range v {
			m[fmt.Sprint(k)] = recursiveNormalize(val)
		}
		return m
	case []any:
		l := make([]any, len(v))
		for i, val := range v {
			l[i] = recursiveNormalize(val)
		}
		return l
	case int:
		return json.Number(fmt.Sprintf("%d", v))
	case int64:
		return json.Number(fmt.Sprintf("%d", v))
	case uint64:
		return json.Number(fmt.Sprintf("%d", v))
	case float64:
		return json.Number(fmt.Sprintf("%v", v))
	default:
		return v
	}
}
