package diary

// Store keeps traveler chains in first-seen order.
type Store struct {
	chains map[string]*Chain
	order  []*Chain
}

func NewStore() *Store {
	return &Store{chains: make(map[string]*Chain)}
}

func (s *Store) Get(traveler string) (*Chain, bool) {
	c, ok := s.chains[traveler]
	return c, ok
}

// Create adds a chain for the traveler, or returns the existing one.
func (s *Store) Create(traveler string) *Chain {
	if c, ok := s.chains[traveler]; ok {
		return c
	}
	c := newChain(traveler)
	s.chains[traveler] = c
	s.order = append(s.order, c)
	return c
}

// All returns the chains in creation order.
func (s *Store) All() []*Chain {
	return s.order
}

func (s *Store) Reset() {
	s.chains = make(map[string]*Chain)
	s.order = nil
}
