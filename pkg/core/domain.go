// Package core defines the domain contracts shared by every dispensa component.
package core

import "maps"

// Fields represents the flexible key-value payload of a stored document.
type Fields map[string]any

// Clone returns a shallow copy of the fields.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	return maps.Clone(f)
}

// Merge returns a copy of f with every key of patch overwritten.
func (f Fields) Merge(patch Fields) Fields {
	out := f.Clone()
	maps.Copy(out, patch)
	return out
}

// Document is a single entry of a collection.
// The ID is assigned by the store on creation and never changes.
type Document struct {
	ID     string
	Fields Fields
}

// Snapshot is the complete content of a collection at one point in time.
// Documents are in the order the store delivers them.
type Snapshot struct {
	Collection string
	Documents  []Document
	Timestamp  int64 // Unix milliseconds
}

// Session identifies the signed-in user. A nil *Session means signed out.
type Session struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Label returns the name shown for the session owner.
func (s *Session) Label() string {
	if s == nil {
		return ""
	}
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Email
}

// CollectionPath scopes a collection name to the session owner.
func CollectionPath(s *Session, name string) string {
	return "users/" + s.UID + "/" + name
}
