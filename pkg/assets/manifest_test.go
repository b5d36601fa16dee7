package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAssetDir(t *testing.T, manifest string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if manifest != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(manifest), 0644))
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func TestLoadManifest(t *testing.T) {
	dir := writeAssetDir(t, `
name: log-summarizer
type: skill
display_name: Log Summarizer
description: Summarizes log files
impact_min: IL2
impact_max: IL5
entrypoint: main.py
dependencies:
  - name: requests
    version: 2.31.0
`, map[string]string{"main.py": "print('ok')"})

	m, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "log-summarizer", m.Name)
	assert.Equal(t, TypeSkill, m.Type)
	assert.Equal(t, "IL2", m.ImpactMin)
	assert.Len(t, m.Dependencies, 1)
	assert.NoError(t, m.Validate(dir))
}

func TestLoadManifestMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadManifest(dir)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ManifestFileName, verr.Field)
}

func TestLoadManifestInvalidYAML(t *testing.T) {
	dir := writeAssetDir(t, "name: [unclosed", nil)
	_, err := LoadManifest(dir)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name     string
		manifest Manifest
		files    map[string]string
		wantErr  string
	}{
		{
			name: "valid goal asset",
			manifest: Manifest{
				Name: "triage-goal", Type: TypeGoal,
				ImpactMin: "IL2", ImpactMax: "IL6",
			},
		},
		{
			name:     "missing name",
			manifest: Manifest{Type: TypeGoal, ImpactMin: "IL2", ImpactMax: "IL6"},
			wantErr:  "name",
		},
		{
			name: "name is not a slug",
			manifest: Manifest{
				Name: "Not A Slug", Type: TypeGoal,
				ImpactMin: "IL2", ImpactMax: "IL6",
			},
			wantErr: "lowercase slug",
		},
		{
			name: "unknown type",
			manifest: Manifest{
				Name: "thing", Type: Type("widget"),
				ImpactMin: "IL2", ImpactMax: "IL6",
			},
			wantErr: "unknown asset type",
		},
		{
			name:     "missing impact levels",
			manifest: Manifest{Name: "thing", Type: TypeGoal},
			wantErr:  "impact_min/impact_max",
		},
		{
			name: "skill without entrypoint",
			manifest: Manifest{
				Name: "runner", Type: TypeSkill,
				ImpactMin: "IL2", ImpactMax: "IL5",
			},
			wantErr: "entrypoint",
		},
		{
			name: "skill entrypoint does not exist",
			manifest: Manifest{
				Name: "runner", Type: TypeSkill,
				ImpactMin: "IL2", ImpactMax: "IL5", Entrypoint: "run.sh",
			},
			wantErr: "does not exist",
		},
		{
			name: "goal with entrypoint",
			manifest: Manifest{
				Name: "triage-goal", Type: TypeGoal,
				ImpactMin: "IL2", ImpactMax: "IL6", Entrypoint: "run.sh",
			},
			wantErr: "not allowed",
		},
		{
			name: "goal with dependencies",
			manifest: Manifest{
				Name: "triage-goal", Type: TypeGoal,
				ImpactMin: "IL2", ImpactMax: "IL6",
				Dependencies: []Dependency{{Name: "requests", Version: "2.31.0"}},
			},
			wantErr: "not allowed",
		},
		{
			name: "dependency without name",
			manifest: Manifest{
				Name: "runner", Type: TypeSkill,
				ImpactMin: "IL2", ImpactMax: "IL5", Entrypoint: "run.sh",
				Dependencies: []Dependency{{Version: "1.0.0"}},
			},
			files:   map[string]string{"run.sh": "#!/bin/sh"},
			wantErr: "dependencies[0].name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeAssetDir(t, "", tt.files)
			err := tt.manifest.Validate(dir)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
