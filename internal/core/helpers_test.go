package core_test

import (
	"fmt"
	"strings"
)

// greeter is a real collaborator with behavior worth preserving across
// interception and restore.
type greeter struct {
	prefix string
}

func (g *greeter) Greet(name string) string {
	return g.prefix + name
}

func (g *greeter) Shout(names ...string) string {
	return strings.ToUpper(g.prefix + strings.Join(names, " "))
}

// store is a collaborator whose methods return errors, for configured
// failure outcomes.
type store struct {
	data map[string]string
}

func (s *store) Get(key string) (string, error) {
	v, ok := s.data[key]
	if !ok {
		return "", fmt.Errorf("no such key %q", key)
	}

	return v, nil
}

func (s *store) Put(key, value string) error {
	if s.data == nil {
		s.data = map[string]string{}
	}

	s.data[key] = value

	return nil
}

// tagged is a value subject whose type is not comparable (slice field);
// registry identity handling must still give it a stable proxy.
type tagged struct {
	labels []string
}

func (t tagged) First() string {
	if len(t.labels) == 0 {
		return ""
	}

	return t.labels[0]
}

// shadower defines its own method-lookup-sounding methods; handle
// resolution must go through reflect's view of the type, not these.
type shadower struct{}

func (shadower) MethodByName(string) string {
	return "shadowed lookup"
}

func (shadower) Target() string {
	return "real target"
}
