package analyzer

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// DefaultRules returns the built-in detection rules.
func DefaultRules() []Rule {
	return []Rule{
		dropObjectRule{},
		blockingIndexRule{},
		columnTypeRule{},
		setNotNullRule{},
	}
}

// tableName extracts a qualified table name from a RangeVar.
func tableName(rv *pg_query.RangeVar) string {
	if rv == nil {
		return "<unknown>"
	}

	if rv.Schemaname != "" {
		return rv.Schemaname + "." + rv.Relname
	}

	return rv.Relname
}

// dropObjectRule flags DROP TABLE and TRUNCATE, both of which destroy data
// that no rollback script can bring back.
type dropObjectRule struct{}

func (dropObjectRule) ID() string { return "drop-object" }

func (dropObjectRule) Check(stmt *pg_query.RawStmt, stmtIndex int) []Finding {
	switch node := stmt.Stmt.Node.(type) {
	case *pg_query.Node_DropStmt:
		drop := node.DropStmt
		if drop == nil || drop.RemoveType != pg_query.ObjectType_OBJECT_TABLE {
			return nil
		}

		return []Finding{{
			Rule:       "drop-object",
			Severity:   Critical,
			Table:      strings.Join(dropTableNames(drop), ", "),
			Message:    "DROP TABLE permanently deletes all data in the table",
			Suggestion: "Verify a backup exists and nothing still reads this table",
			StmtIndex:  stmtIndex,
		}}
	case *pg_query.Node_TruncateStmt:
		var tables []string

		for _, rel := range node.TruncateStmt.GetRelations() {
			if rv, ok := rel.Node.(*pg_query.Node_RangeVar); ok {
				tables = append(tables, tableName(rv.RangeVar))
			}
		}

		return []Finding{{
			Rule:       "drop-object",
			Severity:   Critical,
			Table:      strings.Join(tables, ", "),
			Message:    "TRUNCATE removes all rows and is difficult to reverse",
			Suggestion: "Verify a backup exists before truncating production tables",
			StmtIndex:  stmtIndex,
		}}
	default:
		return nil
	}
}

func dropTableNames(drop *pg_query.DropStmt) []string {
	var tables []string

	for _, obj := range drop.Objects {
		listNode, ok := obj.Node.(*pg_query.Node_List)
		if !ok {
			continue
		}

		var parts []string

		for _, item := range listNode.List.Items {
			if s, ok := item.Node.(*pg_query.Node_String_); ok {
				parts = append(parts, s.String_.Sval)
			}
		}

		if len(parts) > 0 {
			tables = append(tables, strings.Join(parts, "."))
		}
	}

	return tables
}

// blockingIndexRule flags CREATE INDEX without CONCURRENTLY, which holds a
// SHARE lock on the table and blocks writes for the whole build.
type blockingIndexRule struct{}

func (blockingIndexRule) ID() string { return "blocking-index" }

func (blockingIndexRule) Check(stmt *pg_query.RawStmt, stmtIndex int) []Finding {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_IndexStmt)
	if !ok || node.IndexStmt == nil || node.IndexStmt.Concurrent {
		return nil
	}

	return []Finding{{
		Rule:       "blocking-index",
		Severity:   High,
		Table:      tableName(node.IndexStmt.Relation),
		Message:    "CREATE INDEX without CONCURRENTLY blocks writes while the index builds",
		Suggestion: "Use CREATE INDEX CONCURRENTLY (runs outside a transaction)",
		StmtIndex:  stmtIndex,
	}}
}

// columnTypeRule flags ALTER COLUMN TYPE, which usually rewrites the whole
// table under an ACCESS EXCLUSIVE lock.
type columnTypeRule struct{}

func (columnTypeRule) ID() string { return "column-type-change" }

func (columnTypeRule) Check(stmt *pg_query.RawStmt, stmtIndex int) []Finding {
	return checkAlterSubtype(stmt, stmtIndex, pg_query.AlterTableType_AT_AlterColumnType, Finding{
		Rule:       "column-type-change",
		Severity:   High,
		Message:    "ALTER COLUMN TYPE can rewrite the entire table under an exclusive lock",
		Suggestion: "Add a new column, backfill in batches, then swap and drop the old one",
	})
}

// setNotNullRule flags SET NOT NULL, which scans the whole table while
// holding an exclusive lock.
type setNotNullRule struct{}

func (setNotNullRule) ID() string { return "set-not-null" }

func (setNotNullRule) Check(stmt *pg_query.RawStmt, stmtIndex int) []Finding {
	return checkAlterSubtype(stmt, stmtIndex, pg_query.AlterTableType_AT_SetNotNull, Finding{
		Rule:       "set-not-null",
		Severity:   Medium,
		Message:    "SET NOT NULL scans the full table while holding an exclusive lock",
		Suggestion: "Add a NOT VALID check constraint first, VALIDATE it, then set NOT NULL",
	})
}

// checkAlterSubtype returns the template finding for each ALTER TABLE command
// matching the given subtype, with the table and statement index filled in.
func checkAlterSubtype(
	stmt *pg_query.RawStmt,
	stmtIndex int,
	subtype pg_query.AlterTableType,
	template Finding,
) []Finding {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_AlterTableStmt)
	if !ok || node.AlterTableStmt == nil {
		return nil
	}

	var findings []Finding

	for _, cmd := range node.AlterTableStmt.Cmds {
		alterCmd, ok := cmd.Node.(*pg_query.Node_AlterTableCmd)
		if !ok || alterCmd.AlterTableCmd.Subtype != subtype {
			continue
		}

		f := template
		f.Table = tableName(node.AlterTableStmt.Relation)
		f.StmtIndex = stmtIndex
		findings = append(findings, f)
	}

	return findings
}
