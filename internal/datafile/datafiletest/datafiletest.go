// Package datafiletest provides a shared datafile fixture for tests.
package datafiletest

import (
	_ "embed"
	"testing"

	"github.com/rafaeljc/flagscope/internal/datafile"
)

//go:embed testdata/datafile.json
var document []byte

// Document returns a copy of the fixture datafile.
func Document() []byte {
	out := make([]byte, len(document))
	copy(out, document)
	return out
}

// Config parses the fixture datafile, failing the test on error.
func Config(t testing.TB) *datafile.Config {
	t.Helper()

	cfg, err := datafile.Parse(Document())
	if err != nil {
		t.Fatalf("failed to parse fixture datafile: %v", err)
	}
	return cfg
}
