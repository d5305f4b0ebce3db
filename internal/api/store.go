package api

import "sync"

// RunStore keeps the most recent quantization results by id. When full, the
// oldest entry is evicted.
type RunStore struct {
	mu    sync.Mutex
	max   int
	runs  map[string]QuantizeResponse
	order []string
}

func NewRunStore(max int) *RunStore {
	if max <= 0 {
		max = 64
	}
	return &RunStore{
		max:  max,
		runs: make(map[string]QuantizeResponse),
	}
}

func (s *RunStore) Put(resp QuantizeResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[resp.ID]; !ok {
		s.order = append(s.order, resp.ID)
	}
	s.runs[resp.ID] = resp
	for len(s.order) > s.max {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *RunStore) Get(id string) (QuantizeResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.runs[id]
	return resp, ok
}

func (s *RunStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return false
	}
	delete(s.runs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *RunStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}
