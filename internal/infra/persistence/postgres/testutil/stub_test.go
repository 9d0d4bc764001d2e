package testutil

import (
	"context"
	"database/sql/driver"
	"io"
	"testing"
)

func TestStubDBStoresAndFiltersRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	for _, id := range []string{"r1", "r2"} {
		_, err := conn.ExecContext(ctx, "INSERT INTO runs (id, scenario) VALUES ($1,$2)", []driver.NamedValue{
			{Value: id},
			{Value: "demo"},
		})
		if err != nil {
			t.Fatalf("ExecContext insert: %v", err)
		}
	}
	if len(conn.Tables["runs"]) != 2 {
		t.Fatalf("expected two rows, got %v", conn.Tables["runs"])
	}

	rows, err := conn.QueryContext(ctx, "SELECT id, scenario FROM runs WHERE id = $1", []driver.NamedValue{{Value: "r2"}})
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "r2" || dest[1] != "demo" {
		t.Fatalf("unexpected row values: %v", dest)
	}
	if err := rows.Next(dest); err != io.EOF {
		t.Fatalf("expected a single filtered row, got %v", err)
	}
}

func TestStubDBFailureToggles(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	conn.FailPing = true
	if err := conn.Ping(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	conn.FailTables = map[string]bool{"runs": true}
	if _, err := conn.ExecContext(ctx, "INSERT INTO runs (id) VALUES ($1)", []driver.NamedValue{{Value: "x"}}); err == nil {
		t.Fatalf("expected table failure")
	}
	if _, err := conn.QueryContext(ctx, "SELECT id FROM runs", nil); err == nil {
		t.Fatalf("expected query failure")
	}
	if _, err := conn.QueryContext(ctx, "DELETE FROM runs", nil); err == nil {
		t.Fatalf("expected parse failure")
	}
}
