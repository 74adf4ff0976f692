package sequencer

import "container/list"

// lruSet is a bounded set used for the Sequencer's seen_urls duplicate
// suppression: membership test plus insertion, evicting the
// least-recently-added entry once capacity is exceeded.
type lruSet struct {
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

func newLRUSet(capacity int) *lruSet {
	if capacity <= 0 {
		capacity = 2048
	}
	return &lruSet{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Contains reports whether url has been seen.
func (s *lruSet) Contains(url string) bool {
	_, ok := s.index[url]
	return ok
}

// Add records url as seen, evicting the oldest entry if over capacity.
func (s *lruSet) Add(url string) {
	if _, ok := s.index[url]; ok {
		return
	}
	elem := s.order.PushBack(url)
	s.index[url] = elem
	if s.order.Len() > s.capacity {
		oldest := s.order.Front()
		if oldest != nil {
			s.order.Remove(oldest)
			delete(s.index, oldest.Value.(string))
		}
	}
}

// Clear empties the set.
func (s *lruSet) Clear() {
	s.order.Init()
	s.index = make(map[string]*list.Element)
}
