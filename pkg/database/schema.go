package database

import (
	"database/sql"
	"fmt"
	"sort"
)

// AuditTable is the admission history table.
const AuditTable = "admission_audit"

var auditColumns = map[string]string{
	"seq":           "INTEGER",
	"id":            "TEXT",
	"classroom_id":  "TEXT",
	"action":        "TEXT",
	"subject_id":    "TEXT",
	"subject_name":  "TEXT",
	"connection_id": "TEXT",
	"detail":        "TEXT",
	"created_at":    "DATETIME",
}

var auditIndexes = []string{
	"idx_audit_classroom_seq",
	"idx_audit_subject",
}

// SchemaValidator checks a live database against the expected schema.
type SchemaValidator struct {
	db *sql.DB
}

func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

func (v *SchemaValidator) ValidateTablesExist() error {
	for _, table := range []string{AuditTable, "schema_migrations"} {
		exists, err := v.exists("table", table)
		if err != nil {
			return fmt.Errorf("error checking table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("required table %s does not exist", table)
		}
	}
	return nil
}

func (v *SchemaValidator) ValidateTableStructure() error {
	if err := v.validateColumns(AuditTable, auditColumns); err != nil {
		return fmt.Errorf("%s table structure invalid: %w", AuditTable, err)
	}
	return nil
}

func (v *SchemaValidator) ValidateIndexes() error {
	for _, index := range auditIndexes {
		exists, err := v.exists("index", index)
		if err != nil {
			return fmt.Errorf("error checking index %s: %w", index, err)
		}
		if !exists {
			return fmt.Errorf("required index %s does not exist", index)
		}
	}
	return nil
}

func (v *SchemaValidator) exists(kind, name string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?",
		kind, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (v *SchemaValidator) validateColumns(table string, expected map[string]string) error {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]string)
	for rows.Next() {
		var (
			cid          int
			name, typ    string
			notNull, pk  int
			defaultValue interface{}
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		found[name] = typ
	}
	if err := rows.Err(); err != nil {
		return err
	}

	names := make([]string, 0, len(expected))
	for col := range expected {
		names = append(names, col)
	}
	sort.Strings(names)
	for _, col := range names {
		typ, ok := found[col]
		if !ok {
			return fmt.Errorf("column %s not found", col)
		}
		if typ != expected[col] {
			return fmt.Errorf("column %s has type %s, expected %s", col, typ, expected[col])
		}
	}
	return nil
}
