package queue

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Routes maps a competition's declared queue name to the namespace its
// compute tasks are published under. Unmapped names route to themselves, so
// a competition with a queue name gets isolation even without an explicit
// routing file; an empty name routes to the default namespace.
type Routes struct {
	Namespaces map[string]string `yaml:"namespaces"`
}

// LoadRoutes reads the optional YAML routing table. An empty path yields an
// empty table.
func LoadRoutes(path string) (Routes, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Routes{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Routes{}, fmt.Errorf("read routes file: %w", err)
	}
	var routes Routes
	if err := yaml.Unmarshal(data, &routes); err != nil {
		return Routes{}, fmt.Errorf("parse routes file: %w", err)
	}
	return routes, nil
}

// Resolve turns a competition queue name into a publish namespace.
func (r Routes) Resolve(queueName string) string {
	queueName = strings.TrimSpace(queueName)
	if queueName == "" {
		return DefaultNamespace
	}
	if ns, ok := r.Namespaces[queueName]; ok && strings.TrimSpace(ns) != "" {
		return strings.TrimSpace(ns)
	}
	return queueName
}
