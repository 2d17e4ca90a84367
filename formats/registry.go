package formats

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrUnknownFormat    = errors.New("unknown format")
	ErrUnknownExtension = errors.New("unknown extension")
)

// Registry maps format names and file extensions to handlers. It is
// immutable once built and safe for concurrent use.
type Registry struct {
	handlers []Handler
	byName   map[string]Handler
	byExt    map[string]Handler
}

// NewRegistry builds a registry from handlers. Registration order decides
// List order and which handler wins a shared extension (the first one).
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Handler, len(handlers)),
		byExt:  make(map[string]Handler),
	}
	for _, h := range handlers {
		name := strings.ToLower(h.Name())
		if name == "" {
			return nil, fmt.Errorf("registering %T: empty format name", h)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("registering %q: duplicate format name", name)
		}
		r.byName[name] = h
		r.handlers = append(r.handlers, h)
		for _, ext := range h.Extensions() {
			ext = strings.ToLower(strings.TrimPrefix(ext, "."))
			if _, taken := r.byExt[ext]; !taken {
				r.byExt[ext] = h
			}
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on error.
func MustRegistry(handlers ...Handler) *Registry {
	r, err := NewRegistry(handlers...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the handler registered under name.
func (r *Registry) Get(name string) (Handler, error) {
	if h, ok := r.byName[strings.ToLower(name)]; ok {
		return h, nil
	}
	return nil, fmt.Errorf("%w: %s. Available: %s", ErrUnknownFormat, name, strings.Join(r.Names(), ", "))
}

// ForExtension returns the handler for a file extension ("po" or ".po").
func (r *Registry) ForExtension(ext string) (Handler, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if h, ok := r.byExt[ext]; ok {
		return h, nil
	}
	return nil, fmt.Errorf("%w: .%s. Supported: %s", ErrUnknownExtension, ext, strings.Join(r.extensions(), ", "))
}

// Detect picks a handler for path. XML files are only claimed by the
// android handler when they look like Android resources.
func (r *Registry) Detect(path string, content []byte) (Handler, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "xml" {
		if bytes.Contains(content, []byte("<resources>")) || bytes.Contains(content, []byte("<resources ")) ||
			bytes.Contains(content, []byte("<string ")) {
			if h, ok := r.byName["android"]; ok {
				return h, nil
			}
		}
		return nil, fmt.Errorf("%w: %s is not an Android resource file", ErrUnknownFormat, filepath.Base(path))
	}
	h, err := r.ForExtension(ext)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot detect format of %s", ErrUnknownFormat, filepath.Base(path))
	}
	return h, nil
}

// Resolve returns the named handler, or detects one when name is "" or "auto".
func (r *Registry) Resolve(name, path string, content []byte) (Handler, error) {
	if name == "" || strings.EqualFold(name, "auto") {
		return r.Detect(path, content)
	}
	return r.Get(name)
}

// Names returns format names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.handlers))
	for i, h := range r.handlers {
		names[i] = h.Name()
	}
	return names
}

// List describes every registered handler.
func (r *Registry) List() []Info {
	out := make([]Info, len(r.handlers))
	for i, h := range r.handlers {
		out[i] = Info{Name: h.Name(), Extensions: h.Extensions(), SupportsContext: h.SupportsContext()}
	}
	return out
}

func (r *Registry) extensions() []string {
	var out []string
	for _, h := range r.handlers {
		for _, ext := range h.Extensions() {
			out = append(out, "."+ext)
		}
	}
	return out
}
