package survey

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/liamcoop/surveylogic/rules"
)

// Store persists survey definitions and their routing rules
type Store interface {
	// SaveSurvey creates or replaces a whole definition
	SaveSurvey(def *Definition) error

	// GetSurvey returns a definition by id
	GetSurvey(id string) (*Definition, error)

	// ListSurveys returns every definition, ordered by id
	ListSurveys() ([]*Definition, error)

	// AddRule appends a rule to a survey
	AddRule(surveyID string, rule *rules.RoutingRule) error

	// GetRule returns one rule of a survey
	GetRule(surveyID, ruleID string) (*rules.RoutingRule, error)

	// UpdateRule replaces an existing rule, keeping its CreatedAt
	UpdateRule(surveyID string, rule *rules.RoutingRule) error

	// DeleteRule removes a rule from a survey
	DeleteRule(surveyID, ruleID string) error
}

// InMemoryStore implements Store with a map guarded by a RWMutex.
// Definitions are copied on the way in and out.
type InMemoryStore struct {
	surveys map[string]*Definition
	mu      sync.RWMutex
}

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		surveys: make(map[string]*Definition),
	}
}

// SaveSurvey stores a copy of def. CreatedAt is preserved across saves and
// rules without timestamps are stamped with the save time.
func (s *InMemoryStore) SaveSurvey(def *Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	stored := def.Clone()
	if existing, ok := s.surveys[def.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	for i := range stored.Rules {
		stampRule(&stored.Rules[i], now)
	}

	s.surveys[def.ID] = stored
	def.CreatedAt, def.UpdatedAt = stored.CreatedAt, stored.UpdatedAt
	return nil
}

func (s *InMemoryStore) GetSurvey(id string) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.surveys[id]
	if !ok {
		return nil, fmt.Errorf("survey %s: %w", id, ErrNotFound)
	}
	return def.Clone(), nil
}

func (s *InMemoryStore) ListSurveys() ([]*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Definition, 0, len(s.surveys))
	for _, def := range s.surveys {
		out = append(out, def.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) AddRule(surveyID string, rule *rules.RoutingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.surveys[surveyID]
	if !ok {
		return fmt.Errorf("survey %s: %w", surveyID, ErrNotFound)
	}
	if _, exists := def.Rule(rule.ID); exists {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrAlreadyExists)
	}

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	def.Rules = append(def.Rules, cloneRule(*rule))
	def.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) GetRule(surveyID, ruleID string) (*rules.RoutingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.surveys[surveyID]
	if !ok {
		return nil, fmt.Errorf("survey %s: %w", surveyID, ErrNotFound)
	}
	rule, ok := def.Rule(ruleID)
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
	}
	rule = cloneRule(rule)
	return &rule, nil
}

func (s *InMemoryStore) UpdateRule(surveyID string, rule *rules.RoutingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.surveys[surveyID]
	if !ok {
		return fmt.Errorf("survey %s: %w", surveyID, ErrNotFound)
	}
	for i := range def.Rules {
		if def.Rules[i].ID != rule.ID {
			continue
		}
		rule.CreatedAt = def.Rules[i].CreatedAt
		rule.UpdatedAt = time.Now()
		def.Rules[i] = cloneRule(*rule)
		def.UpdatedAt = rule.UpdatedAt
		return nil
	}
	return fmt.Errorf("rule %s: %w", rule.ID, ErrNotFound)
}

func (s *InMemoryStore) DeleteRule(surveyID, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.surveys[surveyID]
	if !ok {
		return fmt.Errorf("survey %s: %w", surveyID, ErrNotFound)
	}
	for i := range def.Rules {
		if def.Rules[i].ID == ruleID {
			def.Rules = append(def.Rules[:i], def.Rules[i+1:]...)
			def.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
}

func stampRule(r *rules.RoutingRule, now time.Time) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
}
