package crates

import (
	"fmt"
	"strconv"
	"strings"
)

// Semver is a parsed crate version. Build metadata is dropped.
type Semver struct {
	Major, Minor, Patch uint64
	Pre                 string
}

// ParseSemver parses a full "major.minor.patch[-pre][+build]" version.
func ParseSemver(s string) (Semver, error) {
	v, parts, err := parsePartial(strings.TrimSpace(s))
	if err != nil {
		return Semver{}, err
	}
	if parts != 3 {
		return Semver{}, fmt.Errorf("incomplete version %q", s)
	}
	return v, nil
}

func (v Semver) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre != "" {
		s += "-" + v.Pre
	}
	return s
}

// Compare returns -1, 0 or +1. A pre-release sorts before its release;
// pre-release identifiers are compared as plain strings.
func (v Semver) Compare(o Semver) int {
	switch {
	case v.Major != o.Major:
		return cmpUint(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpUint(v.Minor, o.Minor)
	case v.Patch != o.Patch:
		return cmpUint(v.Patch, o.Patch)
	case v.Pre == o.Pre:
		return 0
	case v.Pre == "":
		return 1
	case o.Pre == "":
		return -1
	default:
		return strings.Compare(v.Pre, o.Pre)
	}
}

func cmpUint(a, b uint64) int {
	if a < b {
		return -1
	}
	return 1
}

// Requirement is a Cargo version requirement such as "^1.2", "~0.3.1",
// ">=1, <3" or "1.*". A bare version means a caret requirement.
type Requirement struct {
	raw    string
	bounds []bound
}

// bound is a half-open range [lo, hi). A nil hi means unbounded.
type bound struct {
	lo Semver
	hi *Semver
}

// ParseRequirement parses a comma-separated list of comparators. All of
// them must hold for a version to match.
func ParseRequirement(s string) (Requirement, error) {
	r := Requirement{raw: strings.TrimSpace(s)}
	if r.raw == "" {
		return r, fmt.Errorf("empty version requirement")
	}
	for _, part := range strings.Split(r.raw, ",") {
		b, err := parseComparator(strings.TrimSpace(part))
		if err != nil {
			return Requirement{}, fmt.Errorf("version requirement %q: %w", s, err)
		}
		r.bounds = append(r.bounds, b)
	}
	return r, nil
}

func (r Requirement) String() string { return r.raw }

// Matches reports whether v satisfies every comparator of r. Pre-releases
// only match when a comparator names the same major.minor.patch with a
// pre-release, as in Cargo.
func (r Requirement) Matches(v Semver) bool {
	for _, b := range r.bounds {
		if v.Compare(b.lo) < 0 {
			return false
		}
		if b.hi != nil && v.Compare(*b.hi) >= 0 {
			return false
		}
	}
	if v.Pre == "" {
		return true
	}
	for _, b := range r.bounds {
		if b.lo.Pre != "" && b.lo.Major == v.Major && b.lo.Minor == v.Minor && b.lo.Patch == v.Patch {
			return true
		}
	}
	return false
}

func parseComparator(s string) (bound, error) {
	op := ""
	for _, prefix := range []string{">=", "<=", "^", "~", "=", ">", "<"} {
		if strings.HasPrefix(s, prefix) {
			op = prefix
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}

	if op == "" {
		if s == "*" {
			return bound{}, nil
		}
		if wild, ok := strings.CutSuffix(s, ".*"); ok {
			s, op = wild, "="
		} else if wild, ok := strings.CutSuffix(s, ".x"); ok {
			s, op = wild, "="
		} else {
			op = "^"
		}
	}

	v, parts, err := parsePartial(s)
	if err != nil {
		return bound{}, err
	}

	switch op {
	case "^":
		return bound{lo: v, hi: caretUpper(v, parts)}, nil
	case "~":
		return bound{lo: v, hi: tildeUpper(v, parts)}, nil
	case "=":
		if parts == 3 {
			hi := Semver{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
			if v.Pre != "" {
				hi = Semver{Major: v.Major, Minor: v.Minor, Patch: v.Patch}
			}
			return bound{lo: v, hi: &hi}, nil
		}
		return bound{lo: v, hi: bumpAt(v, parts)}, nil
	case ">=":
		return bound{lo: v}, nil
	case ">":
		return bound{lo: *bumpAt(v, parts)}, nil
	case "<":
		return bound{hi: &v}, nil
	case "<=":
		return bound{hi: bumpAt(v, parts)}, nil
	}
	return bound{}, fmt.Errorf("unknown operator %q", op)
}

// parsePartial parses "1", "1.2" or "1.2.3[-pre][+build]" and reports how
// many numeric parts were given.
func parsePartial(s string) (Semver, int, error) {
	if s == "" {
		return Semver{}, 0, fmt.Errorf("missing version")
	}
	s, _, _ = strings.Cut(s, "+")
	core, pre, _ := strings.Cut(s, "-")

	fields := strings.Split(core, ".")
	if len(fields) > 3 {
		return Semver{}, 0, fmt.Errorf("invalid version %q", s)
	}
	var nums [3]uint64
	for i, f := range fields {
		n, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return Semver{}, 0, fmt.Errorf("invalid version %q", s)
		}
		nums[i] = n
	}
	if pre != "" && len(fields) != 3 {
		return Semver{}, 0, fmt.Errorf("pre-release needs a full version: %q", s)
	}
	return Semver{Major: nums[0], Minor: nums[1], Patch: nums[2], Pre: pre}, len(fields), nil
}

// caretUpper allows changes that do not modify the left-most non-zero part.
func caretUpper(v Semver, parts int) *Semver {
	switch {
	case v.Major > 0 || parts == 1:
		return &Semver{Major: v.Major + 1}
	case v.Minor > 0 || parts == 2:
		return &Semver{Minor: v.Minor + 1}
	default:
		return &Semver{Patch: v.Patch + 1}
	}
}

// tildeUpper allows patch-level changes, or minor-level if only a major is given.
func tildeUpper(v Semver, parts int) *Semver {
	if parts == 1 {
		return &Semver{Major: v.Major + 1}
	}
	return &Semver{Major: v.Major, Minor: v.Minor + 1}
}

// bumpAt increments the last given part: the smallest version above every
// version the partial one stands for.
func bumpAt(v Semver, parts int) *Semver {
	switch parts {
	case 1:
		return &Semver{Major: v.Major + 1}
	case 2:
		return &Semver{Major: v.Major, Minor: v.Minor + 1}
	default:
		return &Semver{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
	}
}
