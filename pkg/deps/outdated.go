package deps

import (
	"context"
	"errors"

	"github.com/matzehuels/consecrates/pkg/integrations/crates"
)

// Report is the outcome of checking one dependency against the registry.
type Report struct {
	Dependency
	Latest   string // Newest stable version, or newest version if none is stable
	Outdated bool   // Latest does not satisfy Req
	Err      error  // Fetch or parse failure for this dependency
}

// CheckOutdated looks up every dependency on the registry and compares its
// requirement with the newest release. Each crate is fetched once, in
// order, so with a blocking client the calls are spaced by the gate.
//
// Per-dependency failures are recorded in [Report.Err]. Only context
// cancellation aborts the check.
func CheckOutdated(ctx context.Context, f CrateFetcher, deps []Dependency, logger func(string, ...any)) ([]Report, error) {
	if logger == nil {
		logger = func(string, ...any) {}
	}

	type lookup struct {
		latest string
		err    error
	}
	seen := make(map[string]lookup)

	reports := make([]Report, 0, len(deps))
	for _, d := range deps {
		l, ok := seen[d.Crate]
		if !ok {
			l.latest, l.err = latestVersion(ctx, f, d.Crate)
			if l.err != nil && ctx.Err() != nil {
				return reports, ctx.Err()
			}
			if l.err != nil {
				logger("lookup failed: %s: %v", d.Crate, l.err)
			}
			seen[d.Crate] = l
		}

		r := Report{Dependency: d, Latest: l.latest, Err: l.err}
		if r.Err == nil {
			r.Outdated, r.Err = outdated(d.Req, l.latest)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func latestVersion(ctx context.Context, f CrateFetcher, name string) (string, error) {
	resp, err := f.Crate(ctx, name)
	if err != nil {
		return "", err
	}
	if resp.Crate.MaxStable != "" {
		return resp.Crate.MaxStable, nil
	}
	if resp.Crate.MaxVersion == "" {
		return "", errors.New("registry reported no versions")
	}
	return resp.Crate.MaxVersion, nil
}

func outdated(req, latest string) (bool, error) {
	r, err := crates.ParseRequirement(req)
	if err != nil {
		return false, err
	}
	v, err := crates.ParseSemver(latest)
	if err != nil {
		return false, err
	}
	return !r.Matches(v), nil
}
