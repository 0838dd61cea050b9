package fs

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/aretw0/dispensa/pkg/core"
)

func TestSerializers(t *testing.T) {
	fields := core.Fields{
		"title": "Spesa casa",
		"items": []any{
			map[string]any{"id": json.Number("1714560000123"), "name": "Latte", "done": false},
		},
	}

	for ext, s := range DefaultSerializers() {
		t.Run(ext, func(t *testing.T) {
			data, err := s.Serialize(fields)
			if err != nil {
				t.Fatalf("Serialize failed: %v", err)
			}

			parsed, err := s.Parse(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			if parsed["title"] != "Spesa casa" {
				t.Errorf("title mismatch, got %v", parsed["title"])
			}
			items, ok := parsed["items"].([]any)
			if !ok || len(items) != 1 {
				t.Fatalf("items lost: %#v", parsed["items"])
			}
			item, ok := items[0].(map[string]any)
			if !ok {
				t.Fatalf("item has type %T", items[0])
			}
			if item["id"] != json.Number("1714560000123") {
				t.Errorf("item id lost precision: %#v", item["id"])
			}
			if item["done"] != false {
				t.Errorf("done mismatch: %#v", item["done"])
			}
		})
	}
}

func TestSerializersRejectGarbage(t *testing.T) {
	if _, err := (JSONSerializer{}).Parse(bytes.NewReader([]byte("{"))); err == nil {
		t.Error("expected json error")
	}
	if _, err := (YAMLSerializer{}).Parse(bytes.NewReader([]byte("a: [b"))); err == nil {
		t.Error("expected yaml error")
	}
	empty, err := (YAMLSerializer{}).Parse(bytes.NewReader(nil))
	if err != nil || empty == nil {
		t.Errorf("empty yaml should parse to empty fields, got %v, %v", empty, err)
	}
}
