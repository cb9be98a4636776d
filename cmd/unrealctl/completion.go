package main

import (
	"sort"
	"strings"

	"github.com/posener/complete"

	"github.com/fischp/unreal-engine-mcp/internal/protocol"
)

type kindPredictor struct{}

func newKindPredictor() complete.Predictor {
	return kindPredictor{}
}

// Predict returns the known kinds starting with the word being completed.
func (kindPredictor) Predict(args complete.Args) []string {
	return completeKinds(args.Last)
}

func completeKinds(prefix string) []string {
	var out []string
	for _, kind := range protocol.KnownCommands() {
		if strings.HasPrefix(kind, prefix) {
			out = append(out, kind)
		}
	}
	sort.Strings(out)
	return out
}
