package db

import (
	"strings"
	"testing"
)

func TestSchema_DeclaresTables(t *testing.T) {
	schema := Schema()
	for _, table := range []string{"doctors", "patients", "users", "appointments", "event_logs"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("schema is missing table %s", table)
		}
	}
	for _, status := range []string{"'PENDING'", "'CONFIRMED'", "'REJECTED'"} {
		if !strings.Contains(schema, status) {
			t.Fatalf("schema is missing status literal %s", status)
		}
	}
}
