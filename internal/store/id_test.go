package store

import (
	"testing"
)

func TestGenerateID(t *testing.T) {
	t.Run("canonical shape", func(t *testing.T) {
		id, err := GenerateID(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := ValidateID(id); err != nil {
			t.Fatalf("generated id rejected: %v", err)
		}
	})

	t.Run("time ordered", func(t *testing.T) {
		prev := ""
		for i := 0; i < 50; i++ {
			id, err := GenerateID(nil)
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if id <= prev {
				t.Fatalf("expected increasing ids, got %s after %s", id, prev)
			}
			prev = id
		}
	})

	t.Run("retries on collision", func(t *testing.T) {
		calls := 0
		exists := func(id string) (bool, error) {
			calls++
			return calls < 3, nil // first 2 calls collide
		}
		id, err := GenerateID(exists)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id == "" {
			t.Fatal("expected non-empty id")
		}
		if calls != 3 {
			t.Fatalf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		exists := func(id string) (bool, error) {
			return true, nil // always collide
		}
		_, err := GenerateID(exists)
		if err == nil {
			t.Fatal("expected error after max attempts")
		}
	})
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"0190f2a4b6c87d3e9f1a2b3c4d5e6f70", true},
		{"0190F2A4B6C87D3E9F1A2B3C4D5E6F70", false},
		{"0190f2a4-b6c8-7d3e-9f1a-2b3c4d5e6f70", false},
		{"../etc/passwd", false},
		{"", false},
	}
	for _, tt := range tests {
		err := ValidateID(tt.id)
		if tt.valid && err != nil {
			t.Fatalf("expected %q valid, got %v", tt.id, err)
		}
		if !tt.valid && err == nil {
			t.Fatalf("expected %q invalid", tt.id)
		}
	}
}
