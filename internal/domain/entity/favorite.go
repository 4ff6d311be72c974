package entity

// FavoriteSet is an ordered set of product IDs belonging to one identity.
type FavoriteSet struct {
	ids   []string
	index map[string]struct{}
}

func NewFavoriteSet(ids ...string) *FavoriteSet {
	s := &FavoriteSet{index: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s *FavoriteSet) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Add reports whether the set changed.
func (s *FavoriteSet) Add(id string) bool {
	if id == "" || s.Contains(id) {
		return false
	}
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

// Remove reports whether the set changed.
func (s *FavoriteSet) Remove(id string) bool {
	if !s.Contains(id) {
		return false
	}
	delete(s.index, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
	return true
}

func (s *FavoriteSet) Len() int {
	return len(s.ids)
}

// IDs returns a copy in insertion order.
func (s *FavoriteSet) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

type Favorite struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
}
