package gates

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bazaar/pkg/assets"
)

func TestDefaultRulesCompile(t *testing.T) {
	r := DefaultRules()
	assert.NotEmpty(t, r.sastRules())
	assert.NotEmpty(t, r.secretRules())
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sast:
  - id: banned-call
    pattern: 'dangerous_call\('
    severity: high
    description: banned API
secrets:
  - id: internal-token
    pattern: 'tok_[a-z0-9]{20}'
    severity: critical
    description: internal token
cves:
  - name: leftpad
    version: "1.0.0"
    cve: CVE-2024-0001
    severity: high
`), 0644))

	r, err := LoadRules(path, nil)
	require.NoError(t, err)
	assert.Len(t, r.sastRules(), 1)
	assert.Len(t, r.secretRules(), 1)
	assert.Len(t, r.cveRules(), 1)
}

func TestLoadRulesInvalidPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sast:
  - id: broken
    pattern: '[unclosed'
    severity: high
    description: broken rule
`), 0644))

	_, err := LoadRules(path, nil)
	assert.Error(t, err)
}

func TestCustomCVERuleFailsDependencyAudit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cves:
  - name: leftpad
    version: "*"
    cve: CVE-2024-0001
    severity: critical
`), 0644))

	r, err := LoadRules(path, nil)
	require.NoError(t, err)

	manifest := &assets.Manifest{
		Name: "runner", Type: assets.TypeSkill,
		ImpactMin: "IL2", ImpactMax: "IL5", Entrypoint: "main.py",
		Dependencies: []assets.Dependency{{Name: "leftpad", Version: "3.1.4"}},
	}
	scanner := &dependencyScanner{rules: r}
	verdict, findings, err := scanner.Scan(context.Background(), &Snapshot{Manifest: manifest})
	require.NoError(t, err)
	assert.Equal(t, VerdictFail, verdict)
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Description, "CVE-2024-0001")
}
