// Package analyzer inspects migration SQL for operations that lock tables,
// rewrite data, or destroy it. It runs before apply as a preflight guard and
// behind the plan command.
package analyzer

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/reisewerk/migrate/internal/migration"
	"github.com/reisewerk/migrate/internal/parser"
)

// Finding represents a single dangerous pattern detected in a migration.
type Finding struct {
	Rule       string   // Rule ID (e.g., "drop-object")
	Severity   Severity // Danger level
	Table      string   // Affected table name
	Message    string   // Human-readable description of the danger
	Suggestion string   // Safe alternative approach
	StmtIndex  int      // Index in the migration's statement list (0-based)
}

// Result holds all findings for a single migration.
type Result struct {
	Migration   *migration.Migration
	Findings    []Finding
	MaxSeverity Severity
}

// HasHighOrCritical returns true if any finding is High or Critical severity.
func (r *Result) HasHighOrCritical() bool {
	return r.MaxSeverity >= High
}

// Rule examines one parsed statement and returns any findings.
type Rule interface {
	ID() string
	Check(stmt *pg_query.RawStmt, stmtIndex int) []Finding
}

// Analyzer runs a set of rules against parsed migrations.
type Analyzer struct {
	rules   []Rule
	parseFn func(string) (*parser.ParseResult, error)
}

// Option configures the Analyzer.
type Option func(*Analyzer)

// WithRules replaces the default rule set.
func WithRules(rules []Rule) Option {
	return func(a *Analyzer) { a.rules = rules }
}

// WithParser overrides the SQL parser function (useful for testing).
func WithParser(fn func(string) (*parser.ParseResult, error)) Option {
	return func(a *Analyzer) { a.parseFn = fn }
}

// New creates an Analyzer with the default rules unless overridden.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		rules:   DefaultRules(),
		parseFn: parser.Parse,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Analyze parses and analyzes a single migration, returning all findings.
func (a *Analyzer) Analyze(m *migration.Migration) (*Result, error) {
	parsed, err := a.parseFn(m.UpSQL)
	if err != nil {
		return nil, fmt.Errorf("parsing migration %s: %w", m.Version, err)
	}

	var findings []Finding

	maxSeverity := Safe

	for i, stmt := range parsed.Stmts {
		for _, rule := range a.rules {
			fs := rule.Check(stmt, i)
			for j := range fs {
				if fs[j].Severity > maxSeverity {
					maxSeverity = fs[j].Severity
				}
			}

			findings = append(findings, fs...)
		}
	}

	return &Result{
		Migration:   m,
		Findings:    findings,
		MaxSeverity: maxSeverity,
	}, nil
}

// AnalyzeAll analyzes multiple migrations and returns a result per migration.
func (a *Analyzer) AnalyzeAll(migrations []migration.Migration) ([]Result, error) {
	results := make([]Result, 0, len(migrations))

	for i := range migrations {
		r, err := a.Analyze(&migrations[i])
		if err != nil {
			return nil, err
		}

		results = append(results, *r)
	}

	return results, nil
}
