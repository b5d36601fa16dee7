package tenants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/bazaar/pkg/compatibility"
)

// Sentinel errors for tenant and project lookups.
var (
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrProjectNotFound = errors.New("project not found")
	ErrDuplicate       = errors.New("already exists")
)

var slugRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Tenant is an isolated organization participating in the marketplace.
type Tenant struct {
	ID        string    `json:"id" db:"id"`
	Slug      string    `json:"slug" db:"slug"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Project is a tenant-scoped consumer of assets. Its impact level bounds what
// it may install.
type Project struct {
	ID          string                    `json:"id" db:"id"`
	TenantID    string                    `json:"tenant_id" db:"tenant_id"`
	Slug        string                    `json:"slug" db:"slug"`
	ImpactLevel compatibility.ImpactLevel `json:"impact_level" db:"impact_level"`
	CreatedAt   time.Time                 `json:"created_at" db:"created_at"`
}

// Service provides tenant and project lookups.
type Service interface {
	CreateTenant(ctx context.Context, t *Tenant) error
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error)
	ListTenants(ctx context.Context) ([]*Tenant, error)

	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context, tenantID string) ([]*Project, error)
}

func validateTenant(t *Tenant) error {
	if !slugRe.MatchString(t.Slug) {
		return fmt.Errorf("invalid tenant slug %q", t.Slug)
	}
	if t.Name == "" {
		return errors.New("tenant name is required")
	}
	return nil
}

func validateProject(p *Project) error {
	if !slugRe.MatchString(p.Slug) {
		return fmt.Errorf("invalid project slug %q", p.Slug)
	}
	if p.TenantID == "" {
		return errors.New("project tenant is required")
	}
	if !p.ImpactLevel.IsValid() {
		return fmt.Errorf("invalid impact level %q", p.ImpactLevel)
	}
	return nil
}

// SQLService implements Service on database/sql.
type SQLService struct {
	db *sql.DB
}

// NewSQLService wraps an open database handle.
func NewSQLService(db *sql.DB) *SQLService {
	return &SQLService{db: db}
}

func (s *SQLService) CreateTenant(ctx context.Context, t *Tenant) error {
	if err := validateTenant(t); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, slug, name, created_at) VALUES ($1, $2, $3, $4)`,
		t.ID, t.Slug, t.Name, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tenant: %w", err)
	}
	return nil
}

func (s *SQLService) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	t := &Tenant{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, slug, name, created_at FROM tenants WHERE id = $1`, id).
		Scan(&t.ID, &t.Slug, &t.Name, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tenant %s: %w", id, ErrTenantNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant: %w", err)
	}
	return t, nil
}

func (s *SQLService) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	t := &Tenant{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, slug, name, created_at FROM tenants WHERE slug = $1`, slug).
		Scan(&t.ID, &t.Slug, &t.Name, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tenant %s: %w", slug, ErrTenantNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant: %w", err)
	}
	return t, nil
}

func (s *SQLService) ListTenants(ctx context.Context) ([]*Tenant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, slug, name, created_at FROM tenants ORDER BY slug ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var out []*Tenant
	for rows.Next() {
		t := &Tenant{}
		if err := rows.Scan(&t.ID, &t.Slug, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLService) CreateProject(ctx context.Context, p *Project) error {
	if err := validateProject(p); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, tenant_id, slug, impact_level, created_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.TenantID, p.Slug, p.ImpactLevel, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

func (s *SQLService) GetProject(ctx context.Context, id string) (*Project, error) {
	p := &Project{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, slug, impact_level, created_at FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.TenantID, &p.Slug, &p.ImpactLevel, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	return p, nil
}

func (s *SQLService) ListProjects(ctx context.Context, tenantID string) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, slug, impact_level, created_at FROM projects WHERE tenant_id = $1 ORDER BY slug ASC`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []*Project
	for rows.Next() {
		p := &Project{}
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Slug, &p.ImpactLevel, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MemoryService is an in-memory Service for tests.
type MemoryService struct {
	mu       sync.RWMutex
	tenants  map[string]*Tenant
	projects map[string]*Project
}

// NewMemoryService creates an empty in-memory service.
func NewMemoryService() *MemoryService {
	return &MemoryService{
		tenants:  make(map[string]*Tenant),
		projects: make(map[string]*Project),
	}
}

func (s *MemoryService) CreateTenant(ctx context.Context, t *Tenant) error {
	if err := validateTenant(t); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tenants {
		if existing.Slug == t.Slug {
			return fmt.Errorf("tenant %s: %w", t.Slug, ErrDuplicate)
		}
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

func (s *MemoryService) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", id, ErrTenantNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryService) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("tenant %s: %w", slug, ErrTenantNotFound)
}

func (s *MemoryService) ListTenants(ctx context.Context) ([]*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (s *MemoryService) CreateProject(ctx context.Context, p *Project) error {
	if err := validateProject(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.projects {
		if existing.TenantID == p.TenantID && existing.Slug == p.Slug {
			return fmt.Errorf("project %s/%s: %w", p.TenantID, p.Slug, ErrDuplicate)
		}
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

func (s *MemoryService) GetProject(ctx context.Context, id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, ErrProjectNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryService) ListProjects(ctx context.Context, tenantID string) ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Project
	for _, p := range s.projects {
		if p.TenantID == tenantID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}
