package version

import (
	"fmt"

	"github.com/dbnest/dbnest/pkg/engine"
)

// Scheme distinguishes how an engine numbers its releases, which changes
// what "too much older" means for a restore target.
type Scheme string

const (
	// SchemeSemver orders by major.minor.patch; a major-version downgrade
	// of the target is never accepted.
	SchemeSemver Scheme = "semver"

	// SchemeCalendar orders by year.month.patch.build; the acceptable
	// downgrade window is expressed in months.
	SchemeCalendar Scheme = "calendar"
)

// Policy carries the per-engine version rules. The tolerance values are
// policy constants taken from each engine's documented compatibility
// behavior, not universal law; porting to a new engine needs its own
// confirmed thresholds.
type Policy struct {
	// Kind is the engine this policy applies to.
	Kind engine.Kind

	// Components is the expected component count; shorter versions are
	// zero-padded to this length during parsing.
	Components int

	// Scheme selects semver or calendar ordering.
	Scheme Scheme

	// MinMajor is the oldest supported leading component (major version or
	// release year). Zero means no floor.
	MinMajor int

	// MonthTolerance is the calendar-scheme downgrade window in months.
	MonthTolerance int
}

// Compat is the outcome of a compatibility check. Warning is advisory and
// may be set even when OK is true.
type Compat struct {
	OK      bool
	Warning string
}

var policies = map[engine.Kind]Policy{
	engine.KindPostgres:   {Kind: engine.KindPostgres, Components: 2, Scheme: SchemeSemver, MinMajor: 13},
	engine.KindMySQL:      {Kind: engine.KindMySQL, Components: 3, Scheme: SchemeSemver, MinMajor: 8},
	engine.KindMariaDB:    {Kind: engine.KindMariaDB, Components: 3, Scheme: SchemeSemver, MinMajor: 10},
	engine.KindRedis:      {Kind: engine.KindRedis, Components: 3, Scheme: SchemeSemver, MinMajor: 6},
	engine.KindValkey:     {Kind: engine.KindValkey, Components: 3, Scheme: SchemeSemver, MinMajor: 7},
	engine.KindMongoDB:    {Kind: engine.KindMongoDB, Components: 3, Scheme: SchemeSemver, MinMajor: 6},
	engine.KindClickHouse: {Kind: engine.KindClickHouse, Components: 4, Scheme: SchemeCalendar, MinMajor: 23, MonthTolerance: 6},
	engine.KindQdrant:     {Kind: engine.KindQdrant, Components: 3, Scheme: SchemeSemver, MinMajor: 1},
	engine.KindSQLite:     {Kind: engine.KindSQLite, Components: 3, Scheme: SchemeSemver, MinMajor: 3},
	engine.KindDuckDB:     {Kind: engine.KindDuckDB, Components: 3, Scheme: SchemeSemver, MinMajor: 0},
}

// PolicyFor returns the version policy for an engine kind.
func PolicyFor(kind engine.Kind) Policy {
	if p, ok := policies[kind]; ok {
		return p
	}
	// Unknown kinds get a permissive semver policy rather than a panic;
	// ParseKind rejects unknown kinds long before this point.
	return Policy{Kind: kind, Components: 3, Scheme: SchemeSemver}
}

// Parse parses raw under this policy's component count.
func (p Policy) Parse(raw string) (Info, bool) {
	return Parse(raw, p.Components)
}

// IsSupported reports whether v meets the policy's minimum supported
// major version (or release year, for calendar engines).
func (p Policy) IsSupported(v Info) bool {
	if p.MinMajor == 0 {
		return true
	}
	return len(v.Components) > 0 && v.Components[0] >= p.MinMajor
}

// Compatible decides whether data dumped from sourceRaw may be restored into
// a server running targetRaw.
//
// The policy fails open on unreadable versions: a restore is never blocked
// solely because a version string could not be parsed, but the caller gets a
// warning saying so. A target older than the source by more than the
// engine's tolerance (or by any major version, for semver engines) is
// rejected outright.
func (p Policy) Compatible(sourceRaw, targetRaw string) Compat {
	source, sok := p.Parse(sourceRaw)
	target, tok := p.Parse(targetRaw)
	if !sok || !tok {
		return Compat{
			OK:      true,
			Warning: fmt.Sprintf("could not determine %s version compatibility (source=%q, target=%q); proceeding anyway", p.Kind, sourceRaw, targetRaw),
		}
	}

	switch Compare(source, target) {
	case 0:
		return Compat{OK: true}

	case -1:
		// Target is newer: upgrade direction is always accepted. A major
		// jump still earns an advisory about engine upgrade handling.
		if p.Scheme == SchemeSemver && target.Components[0] > source.Components[0] {
			return Compat{
				OK:      true,
				Warning: fmt.Sprintf("target %s %s is a major version ahead of source %s; review the engine's upgrade notes for schema changes", p.Kind, target, source),
			}
		}
		return Compat{OK: true}

	default:
		// Target is older than the source.
		if p.Scheme == SchemeCalendar {
			months := monthGap(source, target)
			if months > p.MonthTolerance {
				return Compat{
					OK:      false,
					Warning: fmt.Sprintf("source %s %s is much newer than target %s (%d months apart, tolerance %d); restore refused", p.Kind, source, target, months, p.MonthTolerance),
				}
			}
			return Compat{
				OK:      true,
				Warning: fmt.Sprintf("source %s %s is newer than target %s; restoring across a %d-month gap", p.Kind, source, target, months),
			}
		}

		if source.Components[0] > target.Components[0] {
			return Compat{
				OK:      false,
				Warning: fmt.Sprintf("source %s %s is much newer than target %s (major version downgrade); restore refused", p.Kind, source, target),
			}
		}
		return Compat{
			OK:      true,
			Warning: fmt.Sprintf("source %s %s is newer than target %s; minor version downgrades may lose newer-format data", p.Kind, source, target),
		}
	}
}

// monthGap measures how many months source is ahead of target under the
// calendar scheme, aware of year rollovers: 26.1 is seven months ahead of
// 25.6, not a year and five months behind.
func monthGap(source, target Info) int {
	sy, sm := component(source, 0), component(source, 1)
	ty, tm := component(target, 0), component(target, 1)
	return (sy-ty)*12 + (sm - tm)
}

func component(v Info, i int) int {
	if i < len(v.Components) {
		return v.Components[i]
	}
	return 0
}
