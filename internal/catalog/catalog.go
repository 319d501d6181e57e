// Package catalog holds the predefined goals users can pick from.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/thebtf/habitgraph/internal/graph"
)

//go:embed catalog.yaml
var catalogYAML []byte

type file struct {
	Goals []graph.CatalogGoal `yaml:"goals"`
}

var (
	loadOnce sync.Once
	entries  []graph.CatalogGoal
	byID     map[string]graph.CatalogGoal
	loadErr  error
)

// Parse decodes a catalog document and rejects empty or duplicate ids.
func Parse(data []byte) ([]graph.CatalogGoal, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Goals))
	for _, g := range f.Goals {
		if g.ID == "" || g.Title == "" {
			return nil, fmt.Errorf("catalog entry %q: id and title are required", g.ID)
		}
		if _, dup := seen[g.ID]; dup {
			return nil, fmt.Errorf("catalog entry %q: duplicate id", g.ID)
		}
		seen[g.ID] = struct{}{}
	}
	return f.Goals, nil
}

func load() {
	entries, loadErr = Parse(catalogYAML)
	byID = make(map[string]graph.CatalogGoal, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
}

// Entries returns a copy of the embedded catalog in display order.
func Entries() []graph.CatalogGoal {
	loadOnce.Do(load)
	if loadErr != nil {
		panic(loadErr)
	}
	out := make([]graph.CatalogGoal, len(entries))
	copy(out, entries)
	return out
}

// Lookup returns the catalog entry with the given id.
func Lookup(id string) (graph.CatalogGoal, bool) {
	loadOnce.Do(load)
	e, ok := byID[id]
	return e, ok
}
