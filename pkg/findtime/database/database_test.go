package database

import (
	"testing"
)

func TestConnectSQLite(t *testing.T) {
	if err := Connect(DriverSQLite, ":memory:"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if GetDB() == nil {
		t.Fatal("Expected DB to be set after Connect")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("postgres", "whatever"); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}
