package collection

import "github.com/aretw0/introspection"

// State is the observable state of a Controller.
type State struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Session    string `json:"session,omitempty"`
	Documents  int    `json:"documents"`
	Visible    int    `json:"visible"`
	Selected   string `json:"selected,omitempty"`
	Pending    string `json:"pending,omitempty"`
	Filter     string `json:"filter,omitempty"`
	Loaded     bool   `json:"loaded"`
	Subscribed bool   `json:"subscribed"`
	Overlay    int    `json:"overlay"`
	Error      string `json:"error,omitempty"`
}

// State implements introspection.Introspectable.
func (c *Controller[T]) State() any {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Name:       c.cfg.Name,
		Path:       c.pathLocked(),
		Documents:  len(c.mirror),
		Visible:    len(c.visibleIDsLocked()),
		Pending:    c.sel.Pending(),
		Loaded:     c.loaded,
		Subscribed: c.sub != nil,
		Overlay:    len(c.overlay) + len(c.deleted),
	}
	if c.session != nil {
		s.Session = c.session.Label()
	}
	if id, ok := c.sel.Selected(); ok {
		s.Selected = id
	}
	if c.filter != nil {
		s.Filter = c.filter.String()
	}
	if c.err != nil {
		s.Error = c.err.Error()
	}
	return s
}

// ComponentType implements introspection.Component.
func (c *Controller[T]) ComponentType() string {
	return "collection"
}

var _ introspection.Introspectable = (*Controller[entity])(nil)
var _ introspection.Component = (*Controller[entity])(nil)

type entity struct{ ID string }

func (e entity) Key() string { return e.ID }
