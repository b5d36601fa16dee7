package tenants

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryServiceTenantLifecycle(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	tn := &Tenant{Slug: "acme", Name: "Acme Corp"}
	require.NoError(t, svc.CreateTenant(ctx, tn))
	assert.NotEmpty(t, tn.ID)
	assert.False(t, tn.CreatedAt.IsZero())

	got, err := svc.GetTenant(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Slug)

	bySlug, err := svc.GetTenantBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, tn.ID, bySlug.ID)

	_, err = svc.GetTenant(ctx, "missing")
	assert.ErrorIs(t, err, ErrTenantNotFound)
	_, err = svc.GetTenantBySlug(ctx, "missing")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestMemoryServiceTenantDuplicateSlug(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	require.NoError(t, svc.CreateTenant(ctx, &Tenant{Slug: "acme", Name: "Acme Corp"}))
	err := svc.CreateTenant(ctx, &Tenant{Slug: "acme", Name: "Other Acme"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestTenantValidation(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	tests := []struct {
		name   string
		tenant *Tenant
	}{
		{
			name:   "empty slug",
			tenant: &Tenant{Name: "Acme"},
		},
		{
			name:   "uppercase slug",
			tenant: &Tenant{Slug: "Acme", Name: "Acme"},
		},
		{
			name:   "slug with spaces",
			tenant: &Tenant{Slug: "acme corp", Name: "Acme"},
		},
		{
			name:   "missing name",
			tenant: &Tenant{Slug: "acme"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, svc.CreateTenant(ctx, tt.tenant))
		})
	}
}

func TestMemoryServiceListTenantsSorted(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	for _, slug := range []string{"zulu", "alpha", "mike"} {
		require.NoError(t, svc.CreateTenant(ctx, &Tenant{Slug: slug, Name: slug}))
	}

	out, err := svc.ListTenants(ctx)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "alpha", out[0].Slug)
	assert.Equal(t, "mike", out[1].Slug)
	assert.Equal(t, "zulu", out[2].Slug)
}

func TestMemoryServiceProjects(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	tn := &Tenant{Slug: "acme", Name: "Acme Corp"}
	require.NoError(t, svc.CreateTenant(ctx, tn))

	p := &Project{TenantID: tn.ID, Slug: "ops-console", ImpactLevel: "IL4"}
	require.NoError(t, svc.CreateProject(ctx, p))
	assert.NotEmpty(t, p.ID)

	got, err := svc.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "ops-console", got.Slug)
	assert.Equal(t, tn.ID, got.TenantID)

	// Same slug under the same tenant is rejected; another tenant is fine.
	err = svc.CreateProject(ctx, &Project{TenantID: tn.ID, Slug: "ops-console", ImpactLevel: "IL2"})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, svc.CreateProject(ctx, &Project{TenantID: "other", Slug: "ops-console", ImpactLevel: "IL2"}))

	_, err = svc.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestProjectValidation(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	tests := []struct {
		name    string
		project *Project
	}{
		{
			name:    "missing tenant",
			project: &Project{Slug: "ops-console", ImpactLevel: "IL4"},
		},
		{
			name:    "invalid slug",
			project: &Project{TenantID: "t", Slug: "Ops Console", ImpactLevel: "IL4"},
		},
		{
			name:    "invalid impact level",
			project: &Project{TenantID: "t", Slug: "ops-console", ImpactLevel: "IL3"},
		},
		{
			name:    "missing impact level",
			project: &Project{TenantID: "t", Slug: "ops-console"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, svc.CreateProject(ctx, tt.project))
		})
	}
}

func TestMemoryServiceListProjectsScopedToTenant(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	require.NoError(t, svc.CreateProject(ctx, &Project{TenantID: "tenant-a", Slug: "beta", ImpactLevel: "IL2"}))
	require.NoError(t, svc.CreateProject(ctx, &Project{TenantID: "tenant-a", Slug: "alpha", ImpactLevel: "IL2"}))
	require.NoError(t, svc.CreateProject(ctx, &Project{TenantID: "tenant-b", Slug: "gamma", ImpactLevel: "IL2"}))

	out, err := svc.ListProjects(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "alpha", out[0].Slug)
	assert.Equal(t, "beta", out[1].Slug)
}
