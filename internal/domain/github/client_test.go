package github

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/h2non/gock"

	"github.com/gobarber/gobarber/pkg/pagination"
)

// ---------- Helper ----------

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(DefaultBaseURL, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func repoJSON(fullName string, stars int) map[string]interface{} {
	return map[string]interface{}{
		"full_name":         fullName,
		"description":       "The " + fullName + " repository",
		"html_url":          "https://github.com/" + fullName,
		"stargazers_count":  stars,
		"forks_count":       1,
		"open_issues_count": 2,
		"owner":             map[string]string{"login": "owner", "avatar_url": "https://avatars/owner"},
	}
}

// ---------- Tests ----------

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	if _, err := NewClient("api.github.com"); err == nil {
		t.Fatal("expected error for relative url")
	}
}

func TestClient_Repository(t *testing.T) {
	defer gock.Off()

	gock.New(DefaultBaseURL).
		Get("/repos/golang/go").
		MatchHeader("Accept", `application/vnd\.github\+json`).
		MatchHeader("Authorization", "Bearer gh-token").
		Reply(http.StatusOK).
		JSON(repoJSON("golang/go", 120000))

	c := newTestClient(t, WithToken("gh-token"))
	repo, err := c.Repository(context.Background(), "golang/go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.FullName != "golang/go" || repo.StargazersCount != 120000 || repo.Owner.Login != "owner" {
		t.Errorf("unexpected repository %+v", repo)
	}
	if !repo.Description.Valid {
		t.Error("expected description")
	}
	if !gock.IsDone() {
		t.Error("expected all mocks to be used")
	}
}

func TestClient_RepositoryNotFound(t *testing.T) {
	defer gock.Off()

	gock.New(DefaultBaseURL).
		Get("/repos/nobody/nothing").
		Reply(http.StatusNotFound).
		JSON(map[string]string{"message": "Not Found"})

	_, err := newTestClient(t).Repository(context.Background(), "nobody/nothing")
	if !errors.Is(err, ErrRepositoryNotFound) {
		t.Errorf("expected ErrRepositoryNotFound, got %v", err)
	}
}

func TestClient_RateLimited(t *testing.T) {
	defer gock.Off()

	gock.New(DefaultBaseURL).
		Get("/repos/golang/go").
		Reply(http.StatusForbidden).
		SetHeader("X-RateLimit-Remaining", "0").
		JSON(map[string]string{"message": "API rate limit exceeded"})

	_, err := newTestClient(t).Repository(context.Background(), "golang/go")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestClient_ServerError(t *testing.T) {
	defer gock.Off()

	gock.New(DefaultBaseURL).
		Get("/repos/golang/go").
		Reply(http.StatusBadGateway).
		JSON(map[string]string{"message": "upstream"})

	_, err := newTestClient(t).Repository(context.Background(), "golang/go")
	if err == nil || errors.Is(err, ErrRepositoryNotFound) {
		t.Fatalf("expected generic error, got %v", err)
	}
}

func TestClient_InvalidName(t *testing.T) {
	_, err := newTestClient(t).Repository(context.Background(), "no-slash")
	if !errors.Is(err, ErrInvalidRepositoryName) {
		t.Errorf("expected ErrInvalidRepositoryName, got %v", err)
	}
}

func TestClient_CachesLookups(t *testing.T) {
	defer gock.Off()

	// Mocks match once; a second network call would fail.
	gock.New(DefaultBaseURL).
		Get("/repos/golang/go").
		Reply(http.StatusOK).
		JSON(repoJSON("golang/go", 1))

	c := newTestClient(t, WithCacheTTL(time.Minute))
	for _, name := range []string{"golang/go", "GoLang/Go"} {
		if _, err := c.Repository(context.Background(), name); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}

	c.Forget("golang/go")
	gock.New(DefaultBaseURL).
		Get("/repos/golang/go").
		Reply(http.StatusOK).
		JSON(repoJSON("golang/go", 2))

	repo, err := c.Repository(context.Background(), "golang/go")
	if err != nil {
		t.Fatalf("after forget: %v", err)
	}
	if repo.StargazersCount != 2 {
		t.Errorf("expected fresh lookup after Forget, got %d stars", repo.StargazersCount)
	}
}

func TestClient_Issues(t *testing.T) {
	defer gock.Off()

	gock.New(DefaultBaseURL).
		Get("/repos/golang/go/issues").
		MatchParam("per_page", "10").
		MatchParam("page", "2").
		Reply(http.StatusOK).
		JSON([]map[string]interface{}{
			{"id": 1, "number": 101, "title": "first", "html_url": "https://github.com/golang/go/issues/101", "user": map[string]string{"login": "gopher"}},
		})

	issues, err := newTestClient(t).Issues(context.Background(), "golang/go", pagination.ForPage(2, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issues) != 1 || issues[0].Number != 101 || issues[0].User.Login != "gopher" {
		t.Errorf("unexpected issues %+v", issues)
	}
}

func TestClient_RateLimiterHonoursContext(t *testing.T) {
	defer gock.Off()

	gock.New(DefaultBaseURL).
		Get("/repos/golang/go").
		Reply(http.StatusOK).
		JSON(repoJSON("golang/go", 1))

	c := newTestClient(t, WithRateLimit(0.001))
	if _, err := c.Repository(context.Background(), "golang/go"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Repository(ctx, "golang/tools"); err == nil {
		t.Fatal("expected the limiter to refuse a call it cannot serve before the deadline")
	}
}
