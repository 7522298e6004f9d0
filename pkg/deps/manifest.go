package deps

import (
	"cmp"
	"fmt"
	"os"
	"slices"

	"github.com/BurntSushi/toml"

	apperrors "github.com/matzehuels/consecrates/pkg/errors"
)

// Dependency kinds, in manifest section order.
const (
	KindNormal    = "normal"
	KindBuild     = "build"
	KindDev       = "dev"
	KindWorkspace = "workspace"
)

// Dependency is one registry dependency declared in a Cargo.toml.
type Dependency struct {
	Name    string // Key in the manifest
	Crate   string // Crate on the registry; differs from Name when renamed with package = "..."
	Req     string // Version requirement as written
	Kind    string // KindNormal, KindBuild, KindDev or KindWorkspace
	Target  string // cfg expression for target-specific dependencies
	Section string // Manifest section, for messages
}

// Manifest is the registry-relevant part of a Cargo.toml.
type Manifest struct {
	Name         string       // package.name (empty for virtual workspaces)
	Version      string       // package.version (empty when inherited)
	Dependencies []Dependency // Sorted by kind, then name
	Skipped      []string     // Dependencies without a registry version (path, git, workspace = true)
}

// ParseManifest reads the Cargo.toml at path.
func ParseManifest(path string) (*Manifest, error) {
	if err := apperrors.ValidatePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := DecodeManifest(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "parse %s", path)
	}
	return m, nil
}

// DecodeManifest parses Cargo.toml content.
func DecodeManifest(data []byte) (*Manifest, error) {
	var cargo cargoFile
	if err := toml.Unmarshal(data, &cargo); err != nil {
		return nil, err
	}

	m := &Manifest{Name: cargo.Package.Name}
	if v, ok := cargo.Package.Version.(string); ok {
		m.Version = v
	}

	add := func(section, kind, target string, table map[string]any) error {
		for name, spec := range table {
			d, ok, err := parseDependency(name, spec)
			if err != nil {
				return fmt.Errorf("[%s] %s: %w", section, name, err)
			}
			if !ok {
				m.Skipped = append(m.Skipped, name)
				continue
			}
			d.Kind, d.Target, d.Section = kind, target, section
			m.Dependencies = append(m.Dependencies, d)
		}
		return nil
	}

	sections := []struct {
		name, kind string
		table      map[string]any
	}{
		{"dependencies", KindNormal, cargo.Dependencies},
		{"build-dependencies", KindBuild, cargo.BuildDependencies},
		{"dev-dependencies", KindDev, cargo.DevDependencies},
		{"workspace.dependencies", KindWorkspace, cargo.Workspace.Dependencies},
	}
	for _, s := range sections {
		if err := add(s.name, s.kind, "", s.table); err != nil {
			return nil, err
		}
	}
	for cfg, t := range cargo.Target {
		prefix := fmt.Sprintf("target.'%s'.", cfg)
		if err := add(prefix+"dependencies", KindNormal, cfg, t.Dependencies); err != nil {
			return nil, err
		}
		if err := add(prefix+"build-dependencies", KindBuild, cfg, t.BuildDependencies); err != nil {
			return nil, err
		}
		if err := add(prefix+"dev-dependencies", KindDev, cfg, t.DevDependencies); err != nil {
			return nil, err
		}
	}

	slices.SortFunc(m.Dependencies, func(a, b Dependency) int {
		return cmp.Or(
			cmp.Compare(kindOrder(a.Kind), kindOrder(b.Kind)),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.Target, b.Target),
		)
	})
	slices.Sort(m.Skipped)
	m.Skipped = slices.Compact(m.Skipped)
	return m, nil
}

// parseDependency reads `name = "1.0"` or `name = { version = "1.0", ... }`.
// ok is false for dependencies that do not come from the registry.
func parseDependency(name string, spec any) (d Dependency, ok bool, err error) {
	d = Dependency{Name: name, Crate: name}
	switch v := spec.(type) {
	case string:
		d.Req = v
		return d, true, nil
	case map[string]any:
		if pkg, isStr := v["package"].(string); isStr && pkg != "" {
			d.Crate = pkg
		}
		if version, isStr := v["version"].(string); isStr && version != "" {
			d.Req = version
			if reg, isStr := v["registry"].(string); isStr && reg != "" {
				return d, false, nil
			}
			return d, true, nil
		}
		if _, found := v["version"]; found {
			return d, false, fmt.Errorf("version must be a string")
		}
		return d, false, nil
	default:
		return d, false, fmt.Errorf("unsupported dependency specification %T", spec)
	}
}

func kindOrder(kind string) int {
	switch kind {
	case KindNormal:
		return 0
	case KindBuild:
		return 1
	case KindDev:
		return 2
	default:
		return 3
	}
}

type cargoFile struct {
	Package struct {
		Name    string `toml:"name"`
		Version any    `toml:"version"`
	} `toml:"package"`
	Dependencies      map[string]any `toml:"dependencies"`
	DevDependencies   map[string]any `toml:"dev-dependencies"`
	BuildDependencies map[string]any `toml:"build-dependencies"`
	Target            map[string]struct {
		Dependencies      map[string]any `toml:"dependencies"`
		DevDependencies   map[string]any `toml:"dev-dependencies"`
		BuildDependencies map[string]any `toml:"build-dependencies"`
	} `toml:"target"`
	Workspace struct {
		Dependencies map[string]any `toml:"dependencies"`
	} `toml:"workspace"`
}
