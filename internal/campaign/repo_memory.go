package campaign

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"outdial/internal/schedule"
)

// MemoryStore keeps config and state in memory. Tests inject Clock and
// Location to drive rollover deterministically.
type MemoryStore struct {
	mu       sync.Mutex
	configs  map[string]Config
	state    State
	Clock    func() time.Time
	Location *time.Location
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		configs:  make(map[string]Config, len(SlotIDs)),
		state:    NewState(),
		Clock:    time.Now,
		Location: time.UTC,
	}
}

func (s *MemoryStore) today() string {
	return schedule.DateString(s.Clock().In(s.Location))
}

func (s *MemoryStore) GetConfig(ctx context.Context, id string) (Config, error) {
	if !IsValidID(id) {
		return Config{}, ErrUnknownCampaign
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configs[id].WithDefaults(), nil
}

func (s *MemoryStore) UpdateConfig(ctx context.Context, id string, fn func(*Config)) (Config, error) {
	if !IsValidID(id) {
		return Config{}, ErrUnknownCampaign
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.configs[id]
	fn(&cfg)
	s.configs[id] = cfg
	return cfg.WithDefaults(), nil
}

func (s *MemoryStore) GetState(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.normalize()
	s.state.rollover(s.today())
	return cloneState(s.state), nil
}

func (s *MemoryStore) UpdateState(ctx context.Context, fn func(*State)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.normalize()
	s.state.rollover(s.today())
	fn(&s.state)
	s.state.normalize()
	return cloneState(s.state), nil
}

// cloneState deep-copies via JSON so callers never alias the live maps.
func cloneState(in State) State {
	raw, _ := json.Marshal(in)
	var out State
	_ = json.Unmarshal(raw, &out)
	out.normalize()
	return out
}
