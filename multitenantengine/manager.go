package multitenantengine

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/surveylogic/survey"
)

// ErrTenantNotFound is returned for tenants that are not loaded
var ErrTenantNotFound = errors.New("tenant not found")

// Tenant is an isolated owner of surveys
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// TenantEngine wraps a survey.Engine with tenant metadata
type TenantEngine struct {
	Tenant
	Engine *survey.Engine
}

// MultiTenantEngineManager manages engines for all tenants. With a nil
// database every tenant gets an in-memory store.
type MultiTenantEngineManager struct {
	engines map[string]*TenantEngine
	db      *sql.DB
	dialect survey.Dialect
	cache   survey.CacheConfig
	mu      sync.RWMutex
}

// NewMultiTenantEngineManager creates a new manager instance
func NewMultiTenantEngineManager(db *sql.DB, dialect survey.Dialect, cache survey.CacheConfig) *MultiTenantEngineManager {
	return &MultiTenantEngineManager{
		engines: make(map[string]*TenantEngine),
		db:      db,
		dialect: dialect,
		cache:   cache,
	}
}

func (m *MultiTenantEngineManager) newEngine(tenantID string) *survey.Engine {
	var store survey.Store
	if m.db == nil {
		store = survey.NewInMemoryStore()
	} else {
		store = survey.NewSQLStore(m.db, m.dialect, tenantID)
	}
	return survey.NewEngineWithCache(store, survey.NewInMemoryDefinitionCache(m.cache))
}

// LoadAllTenants loads every tenant from the database and initializes its
// engine. It returns the number of tenants loaded.
func (m *MultiTenantEngineManager) LoadAllTenants() (int, error) {
	if m.db == nil {
		return 0, nil
	}

	rows, err := m.db.Query(`SELECT id, name, created_at FROM tenants ORDER BY created_at, id`)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch tenants: %w", err)
	}
	defer rows.Close()

	loaded := make(map[string]*TenantEngine)
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return 0, fmt.Errorf("failed to scan tenant row: %w", err)
		}
		loaded[t.ID] = &TenantEngine{Tenant: t, Engine: m.newEngine(t.ID)}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating tenant rows: %w", err)
	}

	m.mu.Lock()
	for id, te := range loaded {
		m.engines[id] = te
	}
	m.mu.Unlock()

	return len(loaded), nil
}

// CreateTenant registers a new tenant with a generated id
func (m *MultiTenantEngineManager) CreateTenant(name string) (Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tenant{}, fmt.Errorf("tenant name cannot be empty")
	}
	if len(name) > 100 {
		return Tenant{}, fmt.Errorf("tenant name length %d exceeds maximum of 100 characters", len(name))
	}

	t := Tenant{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	if m.db != nil {
		_, err := m.db.Exec(m.dialect.Rebind(`
			INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)
		`), t.ID, t.Name, t.CreatedAt)
		if err != nil {
			return Tenant{}, fmt.Errorf("failed to insert tenant: %w", err)
		}
	}

	m.mu.Lock()
	m.engines[t.ID] = &TenantEngine{Tenant: t, Engine: m.newEngine(t.ID)}
	m.mu.Unlock()

	return t, nil
}

// GetEngine retrieves the engine for a specific tenant
func (m *MultiTenantEngineManager) GetEngine(tenantID string) (*survey.Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	te, exists := m.engines[tenantID]
	if !exists {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrTenantNotFound)
	}
	return te.Engine, nil
}

// ListTenants returns every loaded tenant, oldest first
func (m *MultiTenantEngineManager) ListTenants() []Tenant {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenants := make([]Tenant, 0, len(m.engines))
	for _, te := range m.engines {
		tenants = append(tenants, te.Tenant)
	}
	sort.Slice(tenants, func(i, j int) bool {
		if !tenants[i].CreatedAt.Equal(tenants[j].CreatedAt) {
			return tenants[i].CreatedAt.Before(tenants[j].CreatedAt)
		}
		return tenants[i].ID < tenants[j].ID
	})
	return tenants
}

// DeleteTenant unloads a tenant's engine.
// Note: This does not delete the tenant from the database
func (m *MultiTenantEngineManager) DeleteTenant(tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.engines[tenantID]; !exists {
		return fmt.Errorf("tenant %s: %w", tenantID, ErrTenantNotFound)
	}
	delete(m.engines, tenantID)
	return nil
}
