package snapshot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/3worlds/tw-apps-sub001/internal/store"
)

// Part identifies one logical piece of the editable state.
type Part int

const (
	// PartConfig is the primary configuration graph.
	PartConfig Part = iota
	// PartLayout is the secondary (layout) graph.
	PartLayout
	// PartPrefs is the serialized preference blob.
	PartPrefs
)

// Parts lists every part in write order.
var Parts = []Part{PartConfig, PartLayout, PartPrefs}

// String returns the part name.
func (p Part) String() string {
	switch p {
	case PartConfig:
		return "config"
	case PartLayout:
		return "layout"
	case PartPrefs:
		return "prefs"
	default:
		return "unknown"
	}
}

// ParsePart parses a part name.
func ParsePart(s string) (Part, error) {
	for _, p := range Parts {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown snapshot part %q", s)
}

// PrefsExt is the extension of the preference artifact.
const PrefsExt = ".prefs"

// Stems are the fixed name prefixes, one per part.
// An artifact is named <stem><id><ext>.
type Stems struct {
	Config string
	Layout string
	Prefs  string
}

// DefaultStems returns the stems used when none are configured.
func DefaultStems() Stems {
	return Stems{
		Config: "undo_config_",
		Layout: "undo_layout_",
		Prefs:  "undo_prefs_",
	}
}

// Of returns the stem of a part.
func (s Stems) Of(p Part) string {
	switch p {
	case PartLayout:
		return s.Layout
	case PartPrefs:
		return s.Prefs
	default:
		return s.Config
	}
}

// Validate checks that stems are non-empty, file-name safe, and that no stem
// is a prefix of another (which would make ids ambiguous).
func (s Stems) Validate() error {
	all := []string{s.Config, s.Layout, s.Prefs}
	for i, a := range all {
		if a == "" || strings.ContainsAny(a, `/\.`) {
			return fmt.Errorf("%w: %q", ErrInvalidStems, a)
		}
		for j, b := range all {
			if i != j && strings.HasPrefix(a, b) {
				return fmt.Errorf("%w: %q is a prefix of %q", ErrInvalidStems, b, a)
			}
		}
	}
	return nil
}

// parseID extracts the numeric id of an artifact name with the given stem.
func parseID(name, stem string) (int, bool) {
	rest, ok := strings.CutPrefix(name, stem)
	if !ok {
		return 0, false
	}
	digits, _, _ := strings.Cut(rest, ".")
	if digits == "" {
		return 0, false
	}
	id, err := strconv.Atoi(digits)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// namer allocates collision-free snapshot ids.
//
// Every allocation rescans the store, so artifacts stranded by an earlier
// session are seen even if they were written after this namer started.
// The high-water mark keeps ids increasing within a session after the
// artifacts carrying them have been deleted.
type namer struct {
	mu        sync.Mutex
	store     store.Store
	stems     Stems
	highWater int
}

func newNamer(s store.Store, stems Stems) *namer {
	return &namer{store: s, stems: stems, highWater: -1}
}

// scan returns the sorted distinct ids present in the store for any stem.
func (n *namer) scan() ([]int, error) {
	seen := make(map[int]bool)
	for _, p := range Parts {
		stem := n.stems.Of(p)
		names, err := n.store.List(stem)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if id, ok := parseID(name, stem); ok {
				seen[id] = true
			}
		}
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// next returns an id greater than every id in use or previously allocated.
func (n *namer) next() (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ids, err := n.scan()
	if err != nil {
		return 0, err
	}
	id := n.highWater + 1
	if len(ids) > 0 && ids[len(ids)-1] >= id {
		id = ids[len(ids)-1] + 1
	}
	n.highWater = id
	return id, nil
}

// observe raises the high-water mark to id.
func (n *namer) observe(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if id > n.highWater {
		n.highWater = id
	}
}
