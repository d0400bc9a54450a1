package harness

// OrderedSet is a string set that remembers first-occurrence order.
// Captured access logs are full of repeated lines; deduplicating them
// while keeping the original order keeps the diagnostics readable.
type OrderedSet struct {
	seen  map[string]struct{}
	items []string
}

func NewOrderedSet() *OrderedSet {
	return &OrderedSet{seen: make(map[string]struct{})}
}

// Add inserts v unless it is already present. Returns true on first
// insertion.
func (s *OrderedSet) Add(v string) bool {
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

// Values returns the members in insertion order.
func (s *OrderedSet) Values() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

func (s *OrderedSet) Len() int {
	return len(s.items)
}
