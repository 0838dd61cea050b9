// Package typed converts raw store documents into typed entities.
//
// It is the schema boundary of dispensa: fields coming from a store are
// untrusted maps, and every entity enters the controllers through Decode,
// where missing fields get their defaults and values are normalized.
package typed

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/dispensa/pkg/core"
)

// idKey is the JSON key the document ID is exposed under while decoding.
// It is never written back to the store.
const idKey = "id"

// Normalizer is implemented by entities that fill defaults after decoding.
type Normalizer interface {
	Normalize()
}

// Entity is an entity with a store-assigned identifier.
type Entity interface {
	Key() string
}

// Codec converts between core.Document and T.
// T must tag its ID field as `json:"id"`.
type Codec[T Entity] struct{}

// NewCodec creates a codec for T.
func NewCodec[T Entity]() Codec[T] {
	return Codec[T]{}
}

// Decode converts a document into T, applying Normalize when available.
func (Codec[T]) Decode(doc core.Document) (T, error) {
	var out T

	payload := doc.Fields.Clone()
	payload[idKey] = doc.ID

	data, err := json.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("fields marshal failed: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", doc.ID, err)
	}

	if n, ok := any(&out).(Normalizer); ok {
		n.Normalize()
	}
	return out, nil
}

// DecodeAll decodes a snapshot, keeping store order. Documents that fail
// to decode are skipped and reported in the returned error slice.
func (c Codec[T]) DecodeAll(docs []core.Document) ([]T, []error) {
	out := make([]T, 0, len(docs))
	var errs []error
	for _, d := range docs {
		v, err := c.Decode(d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, v)
	}
	return out, errs
}

// Encode converts T into store fields. The ID is not part of the fields.
func (Codec[T]) Encode(v T) (core.Fields, error) {
	if n, ok := any(&v).(Normalizer); ok {
		n.Normalize()
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal typed data: %w", err)
	}

	var fields core.Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to convert typed data to map: %w", err)
	}
	delete(fields, idKey)
	return fields, nil
}

// Apply merges a partial field update into v and decodes the result.
func (c Codec[T]) Apply(v T, patch core.Fields) (T, error) {
	fields, err := c.Encode(v)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.Decode(core.Document{ID: v.Key(), Fields: fields.Merge(patch)})
}
