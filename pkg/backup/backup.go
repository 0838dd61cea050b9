// Package backup exports the notes and recipes of a session to a blob
// sink: a local file or an S3 object.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/dispensa/pkg/core"
	"github.com/aretw0/dispensa/pkg/model"
)

// Version of the archive layout.
const Version = 1

// Archive is the exported content of one session.
type Archive struct {
	Version    int            `json:"version" yaml:"version"`
	ExportedAt time.Time      `json:"exportedAt" yaml:"exported_at"`
	User       string         `json:"user,omitempty" yaml:"user,omitempty"`
	Notes      []model.Note   `json:"notes" yaml:"notes"`
	Recipes    []model.Recipe `json:"recipes" yaml:"recipes"`
}

// NewArchive builds an archive. Nil slices are written as empty lists.
func NewArchive(session *core.Session, notes []model.Note, recipes []model.Recipe, now time.Time) Archive {
	a := Archive{Version: Version, ExportedAt: now.UTC(), Notes: notes, Recipes: recipes}
	if session != nil {
		a.User = session.UID
	}
	if a.Notes == nil {
		a.Notes = []model.Note{}
	}
	if a.Recipes == nil {
		a.Recipes = []model.Recipe{}
	}
	return a
}

// Encode serializes the archive in the format implied by key's extension
// (YAML for .yaml/.yml, JSON otherwise). It also returns the content type.
func (a Archive) Encode(key string) ([]byte, string, error) {
	switch strings.ToLower(path.Ext(key)) {
	case ".yaml", ".yml":
		data, err := yaml.Marshal(a)
		return data, "application/yaml", err
	default:
		data, err := json.MarshalIndent(a, "", "  ")
		return data, "application/json", err
	}
}

// Sink stores one exported blob.
type Sink interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Export encodes a and writes it to sink under key.
func Export(ctx context.Context, sink Sink, key string, a Archive) error {
	data, contentType, err := a.Encode(key)
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}
	if err := sink.Put(ctx, key, data, contentType); err != nil {
		return fmt.Errorf("export %s: %w", key, err)
	}
	return nil
}

// Target is a parsed export destination.
type Target struct {
	Scheme string // "file" or "s3"
	Bucket string // s3 only
	Key    string // file path or object key
}

// ParseTarget accepts file://path, s3://bucket/key, or a bare path.
func ParseTarget(raw string) (Target, error) {
	if raw == "" {
		return Target{}, &core.ValidationError{Field: "target"}
	}
	if !strings.Contains(raw, "://") {
		return Target{Scheme: "file", Key: raw}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("invalid target %q: %w", raw, err)
	}
	switch u.Scheme {
	case "file":
		p := u.Host + u.Path
		if p == "" {
			return Target{}, &core.ValidationError{Field: "target"}
		}
		return Target{Scheme: "file", Key: p}, nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Target{}, fmt.Errorf("s3 target needs bucket and key: %q", raw)
		}
		return Target{Scheme: "s3", Bucket: u.Host, Key: key}, nil
	default:
		return Target{}, fmt.Errorf("unsupported target scheme %q", u.Scheme)
	}
}
