package utils

// IDSet records the listing IDs already seen during one search. It is owned
// by a single search flow and is not safe for concurrent use.
type IDSet struct {
	seen map[string]struct{}
}

// NewIDSet creates an empty IDSet.
func NewIDSet() *IDSet {
	return &IDSet{seen: make(map[string]struct{})}
}

// Add returns true if the ID was newly added, false if already present.
func (s *IDSet) Add(id string) bool {
	if _, exists := s.seen[id]; exists {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}
