// Package rules loads the optional YAML sync-rules file controlling
// which boards and sections participate in a sync run.
package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules holds include and exclude lists of container names. Entries are
// either "board" (the board and all its sections) or "board/section".
// An empty include list includes everything; exclude wins over include.
type Rules struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// Load reads a rules file. An empty path returns permissive rules that
// allow every container.
func Load(path string) (*Rules, error) {
	if path == "" {
		return &Rules{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file %s: %w", path, err)
	}

	r := &Rules{}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}

	return r, nil
}

// Allow reports whether the (board, section) container should be synced.
// Section is empty for board-level containers.
func (r *Rules) Allow(board, section string) bool {
	if matches(r.Exclude, board, section) {
		return false
	}

	if len(r.Include) == 0 {
		return true
	}

	return matches(r.Include, board, section)
}

// AllowBoard reports whether any container of the board could be synced,
// used to skip discovery work for fully excluded boards. A board whose
// sections are individually included still passes.
func (r *Rules) AllowBoard(board string) bool {
	if r.Allow(board, "") {
		return true
	}

	for _, entry := range r.Include {
		if strings.HasPrefix(entry, board+"/") && !matchesEntryList(r.Exclude, entry) {
			return true
		}
	}

	return false
}

// matches checks whether any list entry covers the container. A bare
// board entry covers the board and every section under it.
func matches(entries []string, board, section string) bool {
	name := board
	if section != "" {
		name = board + "/" + section
	}

	for _, entry := range entries {
		if entry == name || entry == board {
			return true
		}
	}

	return false
}

func matchesEntryList(entries []string, entry string) bool {
	for _, e := range entries {
		if e == entry {
			return true
		}
	}

	return false
}
