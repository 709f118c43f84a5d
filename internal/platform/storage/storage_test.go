package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func testBackends(t *testing.T) map[string]Storage {
	t.Helper()
	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"file":   NewFileStorage(filepath.Join(t.TempDir(), "nested", "storage.json")),
	}
}

func TestStorage_SetGetRemove(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.GetItem("@GoBarber:token"); err != nil || ok {
				t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
			}

			if err := s.SetItem("@GoBarber:token", "abc"); err != nil {
				t.Fatalf("SetItem: %v", err)
			}
			v, ok, err := s.GetItem("@GoBarber:token")
			if err != nil || !ok || v != "abc" {
				t.Fatalf("GetItem = %q, %v, %v; want abc, true, nil", v, ok, err)
			}

			if err := s.RemoveItem("@GoBarber:token"); err != nil {
				t.Fatalf("RemoveItem: %v", err)
			}
			if _, ok, _ := s.GetItem("@GoBarber:token"); ok {
				t.Error("expected key to be removed")
			}

			// Removing a missing key is a no-op.
			if err := s.RemoveItem("@GoBarber:token"); err != nil {
				t.Errorf("RemoveItem on missing key: %v", err)
			}
		})
	}
}

func TestStorage_JSONHelpers(t *testing.T) {
	type profile struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			in := profile{ID: "u-1", Name: "Ana"}
			if err := SetJSON(s, "@GoBarber:user", in); err != nil {
				t.Fatalf("SetJSON: %v", err)
			}

			var out profile
			ok, err := GetJSON(s, "@GoBarber:user", &out)
			if err != nil || !ok {
				t.Fatalf("GetJSON ok=%v err=%v", ok, err)
			}
			if out != in {
				t.Errorf("GetJSON = %+v, want %+v", out, in)
			}

			var missing profile
			ok, err = GetJSON(s, "nope", &missing)
			if err != nil || ok {
				t.Errorf("expected missing key, got ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestStorage_GetJSONCorrupt(t *testing.T) {
	s := NewMemoryStorage()
	s.SetItem("@GoBarber:user", "{not json")

	var out map[string]string
	if _, err := GetJSON(s, "@GoBarber:user", &out); err == nil {
		t.Error("expected decode error for corrupt value")
	}
}

func TestFileStorage_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")

	first := NewFileStorage(path)
	if err := first.SetItem("a", "1"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if err := first.SetItem("b", "2"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}

	second := NewFileStorage(path)
	for key, want := range map[string]string{"a": "1", "b": "2"} {
		got, ok, err := second.GetItem(key)
		if err != nil || !ok || got != want {
			t.Errorf("GetItem(%s) = %q, %v, %v; want %q", key, got, ok, err, want)
		}
	}

	if _, err := os.Stat(path + tmpSuffix); !os.IsNotExist(err) {
		t.Error("temp file should not remain after write")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != filePermissions {
		t.Errorf("expected mode %o, got %o", filePermissions, info.Mode().Perm())
	}
}

func TestFileStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	if err := os.WriteFile(path, []byte("{oops"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := NewFileStorage(path)
	if _, _, err := s.GetItem("a"); err == nil {
		t.Error("expected parse error for corrupt file")
	}
}

func TestFileStorage_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := NewFileStorage(path)
	if _, ok, err := s.GetItem("a"); err != nil || ok {
		t.Errorf("expected empty store, got ok=%v err=%v", ok, err)
	}
}
