package state_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-settings/config"
	"github.com/goliatone/go-settings/pkg/state"
)

// identifierCase pairs a Ref, spelled the way a CLI flag would, with the
// storage key or error it must produce.
type identifierCase struct {
	Name string `json:"name"`
	Ref  struct {
		Domain  string `json:"domain"`
		Level   string `json:"level"`
		Profile string `json:"profile"`
	} `json:"ref"`
	Expect struct {
		Value string `json:"value"`
		Err   string `json:"err"`
	} `json:"expect"`
}

func (c identifierCase) ref() state.Ref {
	return state.Ref{Domain: c.Ref.Domain, Level: config.ParseLevel(c.Ref.Level), Profile: c.Ref.Profile}
}

func TestRefIdentifierContracts(t *testing.T) {
	var fixture struct {
		Cases []identifierCase `json:"cases"`
	}
	readFixture(t, "state_identifier.json", &fixture)
	if len(fixture.Cases) == 0 {
		t.Fatalf("fixture has no cases")
	}

	store, err := state.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	for _, tc := range fixture.Cases {
		t.Run(tc.Name, func(t *testing.T) {
			id, err := tc.ref().Identifier()
			switch {
			case tc.Expect.Err != "":
				if err == nil || err.Error() != tc.Expect.Err {
					t.Fatalf("expected error %q, got id %q err %v", tc.Expect.Err, id, err)
				}
				if _, err := store.Path(tc.ref()); err == nil {
					t.Fatalf("file store must reject the same ref")
				}
				return
			case err != nil:
				t.Fatalf("identifier: %v", err)
			case id != tc.Expect.Value:
				t.Fatalf("expected identifier %q, got %q", tc.Expect.Value, id)
			}

			path, err := store.Path(tc.ref())
			if err != nil {
				t.Fatalf("path: %v", err)
			}
			rel, err := filepath.Rel(store.Root(), path)
			if err != nil || filepath.ToSlash(rel) != tc.Expect.Value+".xml" {
				t.Fatalf("expected the document under %s, got %s", tc.Expect.Value, path)
			}
		})
	}
}

// readFixture decodes testdata/name from the module root.
func readFixture(t *testing.T, name string, out any) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("decode fixture %s: %v", name, err)
	}
}
