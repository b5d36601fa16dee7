package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var slugRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ManifestFileName is the required manifest at the root of every asset directory.
const ManifestFileName = "asset.yaml"

// Manifest describes an asset directory submitted for publication.
type Manifest struct {
	Name         string       `yaml:"name"`
	Type         Type         `yaml:"type"`
	DisplayName  string       `yaml:"display_name"`
	Description  string       `yaml:"description"`
	ImpactMin    string       `yaml:"impact_min"`
	ImpactMax    string       `yaml:"impact_max"`
	Entrypoint   string       `yaml:"entrypoint,omitempty"`
	Dependencies []Dependency `yaml:"dependencies,omitempty"`
}

// Dependency is a declared dependency of an executable asset. Versions must be
// pinned exactly for the supply-chain gate to pass.
type Dependency struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ValidationError reports a malformed asset structure. It is surfaced
// immediately and causes no partial write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("asset validation failed: %s", e.Message)
	}
	return fmt.Sprintf("asset validation failed: %s: %s", e.Field, e.Message)
}

// LoadManifest reads and parses asset.yaml from an asset directory.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ValidationError{Field: ManifestFileName, Message: "manifest not found"}
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ValidationError{Field: ManifestFileName, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	return &m, nil
}

// Validate checks the manifest's required fields and that the declared type
// matches the on-disk content layout.
func (m *Manifest) Validate(dir string) error {
	if m.Name == "" {
		return &ValidationError{Field: "name", Message: "required"}
	}
	if !slugRe.MatchString(m.Name) {
		return &ValidationError{Field: "name", Message: "must be a lowercase slug (a-z, 0-9, hyphen)"}
	}
	if m.Type == "" {
		return &ValidationError{Field: "type", Message: "required"}
	}
	if !m.Type.IsValid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown asset type %q", m.Type)}
	}
	if m.ImpactMin == "" || m.ImpactMax == "" {
		return &ValidationError{Field: "impact_min/impact_max", Message: "required"}
	}

	// Executable types must declare an entrypoint and the entrypoint must exist.
	if m.Type.Executable() {
		if m.Entrypoint == "" {
			return &ValidationError{Field: "entrypoint", Message: fmt.Sprintf("required for %s assets", m.Type)}
		}
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(m.Entrypoint))); err != nil {
			return &ValidationError{Field: "entrypoint", Message: fmt.Sprintf("%s does not exist in asset directory", m.Entrypoint)}
		}
	} else {
		if m.Entrypoint != "" {
			return &ValidationError{Field: "entrypoint", Message: fmt.Sprintf("not allowed for %s assets", m.Type)}
		}
		if len(m.Dependencies) > 0 {
			return &ValidationError{Field: "dependencies", Message: fmt.Sprintf("not allowed for %s assets", m.Type)}
		}
	}

	for i, d := range m.Dependencies {
		if d.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("dependencies[%d].name", i), Message: "required"}
		}
	}

	return nil
}
