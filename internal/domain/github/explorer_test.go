package github

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/h2non/gock"

	"github.com/gobarber/gobarber/internal/platform/storage"
)

// ---------- Helper ----------

func newTestExplorer(t *testing.T, store storage.Storage) *Explorer {
	t.Helper()
	e, err := NewExplorer(newTestClient(t), store)
	if err != nil {
		t.Fatalf("new explorer: %v", err)
	}
	return e
}

func mockRepo(fullName string, stars int) {
	gock.New(DefaultBaseURL).
		Get("/repos/" + fullName + "$").
		Reply(http.StatusOK).
		JSON(repoJSON(fullName, stars))
}

func names(repos []Repository) []string {
	out := make([]string, len(repos))
	for i, r := range repos {
		out[i] = r.FullName
	}
	return out
}

// ---------- Tests ----------

func TestExplorer_AddPrependsAndPersists(t *testing.T) {
	defer gock.Off()
	mockRepo("golang/go", 1)
	mockRepo("labstack/echo", 2)

	store := storage.NewMemoryStorage()
	e := newTestExplorer(t, store)

	for _, name := range []string{"golang/go", " labstack/echo "} {
		if _, err := e.Add(context.Background(), name); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	got := names(e.List())
	if len(got) != 2 || got[0] != "labstack/echo" || got[1] != "golang/go" {
		t.Errorf("expected newest first, got %v", got)
	}

	reopened := newTestExplorer(t, store)
	if saved := names(reopened.List()); len(saved) != 2 || saved[0] != "labstack/echo" {
		t.Errorf("expected list restored from storage, got %v", saved)
	}
}

func TestExplorer_AddRejects(t *testing.T) {
	defer gock.Off()
	mockRepo("golang/go", 1)

	e := newTestExplorer(t, storage.NewMemoryStorage())
	if _, err := e.Add(context.Background(), "golang/go"); err != nil {
		t.Fatalf("add: %v", err)
	}

	tests := []struct {
		input string
		want  error
	}{
		{"", ErrEmptyRepositoryName},
		{"   ", ErrEmptyRepositoryName},
		{"golang", ErrInvalidRepositoryName},
		{"golang/go/extra", ErrInvalidRepositoryName},
		{"golang/go", ErrRepositoryExists},
		{"GOLANG/GO", ErrRepositoryExists},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if _, err := e.Add(context.Background(), tt.input); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(e.List()) != 1 {
		t.Errorf("rejected input must not change the list, got %v", names(e.List()))
	}
}

func TestExplorer_AddNotFound(t *testing.T) {
	defer gock.Off()
	gock.New(DefaultBaseURL).Get("/repos/nobody/nothing").Reply(http.StatusNotFound)

	e := newTestExplorer(t, storage.NewMemoryStorage())
	if _, err := e.Add(context.Background(), "nobody/nothing"); !errors.Is(err, ErrRepositoryNotFound) {
		t.Fatalf("expected ErrRepositoryNotFound, got %v", err)
	}
	if len(e.List()) != 0 {
		t.Error("missing repository must not be saved")
	}
}

func TestExplorer_Remove(t *testing.T) {
	defer gock.Off()
	mockRepo("golang/go", 1)
	mockRepo("labstack/echo", 2)

	store := storage.NewMemoryStorage()
	e := newTestExplorer(t, store)
	_, _ = e.Add(context.Background(), "golang/go")
	_, _ = e.Add(context.Background(), "labstack/echo")

	if err := e.Remove("golang/go"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := names(e.List()); len(got) != 1 || got[0] != "labstack/echo" {
		t.Errorf("unexpected list %v", got)
	}
	if err := e.Remove("golang/go"); !errors.Is(err, ErrRepositoryNotFound) {
		t.Errorf("expected ErrRepositoryNotFound, got %v", err)
	}

	var saved []Repository
	if _, err := storage.GetJSON(store, RepositoriesKey, &saved); err != nil || len(saved) != 1 {
		t.Errorf("expected removal persisted, got %v %v", names(saved), err)
	}
}

func TestExplorer_Refresh(t *testing.T) {
	defer gock.Off()
	mockRepo("golang/go", 1)
	mockRepo("labstack/echo", 2)

	e := newTestExplorer(t, storage.NewMemoryStorage())
	_, _ = e.Add(context.Background(), "golang/go")
	_, _ = e.Add(context.Background(), "labstack/echo")

	mockRepo("golang/go", 10)
	mockRepo("labstack/echo", 20)
	if err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	list := e.List()
	if names(list)[0] != "labstack/echo" || list[0].StargazersCount != 20 || list[1].StargazersCount != 10 {
		t.Errorf("expected refreshed entries in place, got %+v", list)
	}
}

func TestExplorer_RefreshFailureKeepsList(t *testing.T) {
	defer gock.Off()
	mockRepo("golang/go", 1)

	e := newTestExplorer(t, storage.NewMemoryStorage())
	_, _ = e.Add(context.Background(), "golang/go")

	gock.New(DefaultBaseURL).Get("/repos/golang/go").Reply(http.StatusInternalServerError)
	if err := e.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if list := e.List(); len(list) != 1 || list[0].StargazersCount != 1 {
		t.Errorf("expected list untouched, got %+v", list)
	}
}

func TestExplorer_Details(t *testing.T) {
	defer gock.Off()
	mockRepo("golang/go", 1)
	gock.New(DefaultBaseURL).
		Get("/repos/golang/go/issues").
		MatchParam("per_page", "20").
		MatchParam("page", "1").
		Reply(http.StatusOK).
		JSON([]map[string]interface{}{{"id": 7, "number": 7, "title": "bug"}})

	d, err := newTestExplorer(t, storage.NewMemoryStorage()).Details(context.Background(), "golang/go")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if d.Repository.FullName != "golang/go" || len(d.Issues) != 1 || d.Issues[0].Title != "bug" {
		t.Errorf("unexpected details %+v", d)
	}
}

func TestNewExplorer_CorruptStorage(t *testing.T) {
	store := storage.NewMemoryStorage()
	_ = store.SetItem(RepositoriesKey, "[{")
	if _, err := NewExplorer(newTestClient(t), store); err == nil {
		t.Fatal("expected error for corrupt saved list")
	}
}

func TestSplitFullName(t *testing.T) {
	owner, name, err := SplitFullName("go-playground/validator.v10")
	if err != nil || owner != "go-playground" || name != "validator.v10" {
		t.Errorf("unexpected split %q %q %v", owner, name, err)
	}
}
