package db

import (
	"context"
	"testing"
	"time"
)

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Port 1 is never a Postgres server
	_, err := Connect(ctx, "postgres://qb@localhost:1/questionbank?sslmode=disable&connect_timeout=1")
	if err == nil {
		t.Fatal("expected connection error")
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := Connect(ctx, "postgres://%zz"); err == nil {
		t.Fatal("expected error for malformed URL")
	}
}
