package vault

import (
	"fmt"

	"github.com/freeeve/chessnotes/internal/layout"
)

// Graph builds the link graph: one node per note title and one edge per
// wiki-link whose target is an existing title. Duplicate links are kept;
// links to missing notes are dropped.
func Graph(s *Store) ([]string, []layout.Edge, error) {
	notes, err := s.List()
	if err != nil {
		return nil, nil, err
	}
	titles := make(map[string]bool, len(notes))
	ids := make([]string, 0, len(notes))
	for _, n := range notes {
		if !titles[n.Title] {
			titles[n.Title] = true
			ids = append(ids, n.Title)
		}
	}

	var edges []layout.Edge
	for _, n := range notes {
		body, err := s.Read(n.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("graph: %w", err)
		}
		for _, target := range Links(body) {
			if titles[target] {
				edges = append(edges, layout.Edge{Source: n.Title, Target: target})
			}
		}
	}
	s.log.Debug().Int("nodes", len(ids)).Int("edges", len(edges)).Msg("graph built")
	return ids, edges, nil
}
