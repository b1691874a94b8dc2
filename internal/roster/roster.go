// Package roster provides the committee roster consumed by contribution
// plan generation.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

type (
	// Member is one committee member as the portal records it.
	Member struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}

	// Group is one committee group (directive board, scientific committee,
	// logistics...). A member may appear in more than one group.
	Group struct {
		Name    string   `json:"name"`
		Members []Member `json:"members"`
	}

	// Provider supplies the committee groups.
	Provider interface {
		Groups(ctx context.Context) ([]Group, error)
	}
)

// MemberID derives a stable organizer id from a display name: lowercased,
// spaces collapsed to hyphens, everything else dropped. Plan regeneration
// keeps ids stable as long as names do not change.
func MemberID(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// UniqueMembers flattens the groups and deduplicates by display name so a
// member sitting on several committees is counted once. The first role seen
// wins. Note the key is the name, not an id: two distinct people sharing a
// name collapse into one obligation holder, matching how the portal keeps
// its roster.
func UniqueMembers(groups []Group) []Member {
	seen := make(map[string]struct{})
	var out []Member
	for _, g := range groups {
		for _, m := range g.Members {
			name := strings.TrimSpace(m.Name)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, Member{Name: name, Role: m.Role})
		}
	}
	return out
}

// Memory is a fixed in-memory roster, used by tests and seeding.
type Memory struct {
	groups []Group
}

func NewMemory(groups ...Group) *Memory {
	return &Memory{groups: groups}
}

func (m *Memory) Groups(_ context.Context) ([]Group, error) {
	out := make([]Group, len(m.groups))
	copy(out, m.groups)
	return out, nil
}

// File reads the roster from a JSON file on every call, so edits are picked
// up by the next plan generation without a restart.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Groups(_ context.Context) ([]Group, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}
	var groups []Group
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("decode roster file %s: %w", f.path, err)
	}
	return groups, nil
}

var (
	_ Provider = (*Memory)(nil)
	_ Provider = (*File)(nil)
)
