// Package rooms holds the closed set of room names a session may join.
package rooms

import (
	"errors"
	"strings"

	"github.com/samber/lo"
)

var ErrNoRooms = errors.New("at least one room must be configured")

// Registry is the immutable room allow-list loaded at startup.
type Registry struct {
	names []string
	set   map[string]struct{}
}

func New(names []string) (*Registry, error) {
	cleaned := lo.Uniq(lo.FilterMap(names, func(n string, _ int) (string, bool) {
		n = strings.TrimSpace(n)
		return n, n != ""
	}))
	if len(cleaned) == 0 {
		return nil, ErrNoRooms
	}

	set := make(map[string]struct{}, len(cleaned))
	for _, n := range cleaned {
		set[n] = struct{}{}
	}

	return &Registry{names: cleaned, set: set}, nil
}

func (r *Registry) IsValid(name string) bool {
	_, ok := r.set[name]
	return ok
}

// List returns the rooms in configured order.
func (r *Registry) List() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
