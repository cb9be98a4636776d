package main

import (
	"testing"

	"github.com/posener/complete"
	"github.com/stretchr/testify/assert"

	"github.com/fischp/unreal-engine-mcp/internal/protocol"
)

func TestCompleteKinds(t *testing.T) {
	tests := []struct {
		name    string
		partial string
		want    int
	}{
		{"empty input", "", len(protocol.KnownCommands())},
		{"editor prefix", "editor_", 7},
		{"exact", "ping", 1},
		{"no match", "xyz", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newKindPredictor().Predict(complete.Args{Last: tt.partial})
			assert.Len(t, got, tt.want, "Predict(%q) returned %v", tt.partial, got)
			assert.IsNonDecreasing(t, got)
		})
	}
}
