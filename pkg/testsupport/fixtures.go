package testsupport

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-repository-identity/identity"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
// The path is relative to the test package directory.
func LoadFixtureJSON(t *testing.T, path string, dest interface{}) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadRowsFixture loads a JSON array of objects as rows keyed by table.
// The file is an object mapping table names to row arrays. Numbers are kept
// as json.Number so integer ids keep their exact value.
func LoadRowsFixture(t *testing.T, path string) map[string][]identity.Attributes {
	t.Helper()

	var raw map[string][]map[string]any
	dec := json.NewDecoder(bytes.NewReader(LoadFixture(t, path)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		t.Fatalf("failed to decode rows fixture from %s: %v", path, err)
	}

	out := make(map[string][]identity.Attributes, len(raw))
	for table, rows := range raw {
		for _, row := range rows {
			out[table] = append(out[table], identity.AttributesFromMap(row))
		}
	}
	return out
}

// SeedFixture loads a rows fixture into store.
func SeedFixture(t *testing.T, store *MemoryStorage, path string) {
	t.Helper()

	for table, rows := range LoadRowsFixture(t, path) {
		store.Seed(table, rows...)
	}
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}
