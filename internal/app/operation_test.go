package app

import "testing"

func TestNewRequest(t *testing.T) {
	tests := []struct {
		name      string
		adds      []string
		checks    []string
		operation string
		mutates   bool
	}{
		{name: "add only", adds: []string{"/a"}, operation: "add", mutates: true},
		{name: "check only", checks: []string{"."}, operation: "check", mutates: false},
		{name: "add and check", adds: []string{"/a"}, checks: []string{"/b"}, operation: "add+check", mutates: true},
		{name: "empty", operation: "check", mutates: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRequest(tt.adds, tt.checks)

			if got := r.Operation(); got != tt.operation {
				t.Errorf("Operation() = %q, want %q", got, tt.operation)
			}
			if got := r.Mutates(); got != tt.mutates {
				t.Errorf("Mutates() = %v, want %v", got, tt.mutates)
			}

			b := r.Batch()
			if b.Operation != tt.operation || len(b.Adds) != len(tt.adds) || len(b.Checks) != len(tt.checks) {
				t.Errorf("Batch() = %+v", b)
			}
		})
	}
}
