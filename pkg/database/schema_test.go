package database

import (
	"strings"
	"testing"
)

func TestSchemaValidator_EmptyDatabase(t *testing.T) {
	db := openTestDB(t)
	v := NewSchemaValidator(db)

	err := v.ValidateTablesExist()
	if err == nil || !strings.Contains(err.Error(), AuditTable) {
		t.Errorf("Expected missing %s error, got %v", AuditTable, err)
	}
}

func TestSchemaValidator_AfterMigrations(t *testing.T) {
	db := openTestDB(t)
	if err := NewMigrationManager(db).ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
	v := NewSchemaValidator(db)

	if err := v.ValidateTablesExist(); err != nil {
		t.Errorf("ValidateTablesExist: %v", err)
	}
	if err := v.ValidateTableStructure(); err != nil {
		t.Errorf("ValidateTableStructure: %v", err)
	}
	if err := v.ValidateIndexes(); err != nil {
		t.Errorf("ValidateIndexes: %v", err)
	}
}

func TestSchemaValidator_DetectsMissingIndex(t *testing.T) {
	db := openTestDB(t)
	if err := NewMigrationManager(db).ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
	if _, err := db.Exec("DROP INDEX idx_audit_subject"); err != nil {
		t.Fatalf("Failed to drop index: %v", err)
	}

	if err := NewSchemaValidator(db).ValidateIndexes(); err == nil {
		t.Error("Expected missing index error")
	}
}

func TestSchemaValidator_DetectsWrongColumnType(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`CREATE TABLE admission_audit (seq INTEGER, id TEXT, classroom_id INTEGER)`)
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	err = NewSchemaValidator(db).ValidateTableStructure()
	if err == nil {
		t.Fatal("Expected structure error")
	}
	if !strings.Contains(err.Error(), "action") && !strings.Contains(err.Error(), "classroom_id") {
		t.Errorf("Unexpected error: %v", err)
	}
}
