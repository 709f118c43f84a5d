package github

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gobarber/gobarber/internal/platform/storage"
	"github.com/gobarber/gobarber/internal/platform/validation"
	"github.com/gobarber/gobarber/pkg/pagination"
)

// RepositoriesKey is the storage key of the saved repository list.
const RepositoriesKey = "@GithubExplorer:repositories"

const defaultRefreshConcurrency = 4

var (
	ErrEmptyRepositoryName   = errors.New("type the author/name of the repository")
	ErrInvalidRepositoryName = errors.New("repository must be written as author/name")
	ErrRepositoryExists      = errors.New("repository already added")
)

var fullNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// SplitFullName splits "owner/name".
func SplitFullName(fullName string) (owner, name string, err error) {
	if !fullNamePattern.MatchString(fullName) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepositoryName, fullName)
	}
	owner, name, _ = strings.Cut(fullName, "/")
	return owner, name, nil
}

// Details is a repository with the first page of its issues.
type Details struct {
	Repository Repository
	Issues     []Issue
}

type ExplorerOption func(*Explorer)

func WithExplorerLogger(l zerolog.Logger) ExplorerOption {
	return func(e *Explorer) { e.logger = l }
}

// WithRefreshConcurrency bounds the number of lookups Refresh runs at once.
func WithRefreshConcurrency(n int) ExplorerOption {
	return func(e *Explorer) { e.concurrency = n }
}

// Explorer is the saved list of repositories, newest first.
type Explorer struct {
	client      *Client
	store       storage.Storage
	validate    *validation.Validator
	logger      zerolog.Logger
	concurrency int

	mu    sync.Mutex
	repos []Repository
}

// NewExplorer loads the saved list from store.
func NewExplorer(client *Client, store storage.Storage, opts ...ExplorerOption) (*Explorer, error) {
	e := &Explorer{
		client:      client,
		store:       store,
		validate:    validation.New(),
		logger:      zerolog.Nop(),
		concurrency: defaultRefreshConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}

	if _, err := storage.GetJSON(store, RepositoriesKey, &e.repos); err != nil {
		return nil, fmt.Errorf("load saved repositories: %w", err)
	}
	return e, nil
}

// Add looks up input ("owner/name") and puts it at the top of the list.
func (e *Explorer) Add(ctx context.Context, input string) (Repository, error) {
	input = strings.TrimSpace(input)
	if err := e.validate.Var("repository", input, "required"); err != nil {
		return Repository{}, ErrEmptyRepositoryName
	}
	if _, _, err := SplitFullName(input); err != nil {
		return Repository{}, err
	}
	if e.contains(input) {
		return Repository{}, fmt.Errorf("%w: %s", ErrRepositoryExists, input)
	}

	repo, err := e.client.Repository(ctx, input)
	if err != nil {
		return Repository{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// GitHub may canonicalise the name, so check again.
	if e.indexLocked(repo.FullName) >= 0 {
		return Repository{}, fmt.Errorf("%w: %s", ErrRepositoryExists, repo.FullName)
	}
	next := append([]Repository{repo}, e.repos...)
	if err := e.saveLocked(next); err != nil {
		return Repository{}, err
	}
	e.logger.Info().Str("repository", repo.FullName).Msg("repository added")
	return repo, nil
}

// List returns the saved repositories, newest first.
func (e *Explorer) List() []Repository {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Repository(nil), e.repos...)
}

// Remove drops fullName from the list.
func (e *Explorer) Remove(fullName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexLocked(fullName)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRepositoryNotFound, fullName)
	}
	next := append(append([]Repository(nil), e.repos[:i]...), e.repos[i+1:]...)
	if err := e.saveLocked(next); err != nil {
		return err
	}
	e.client.Forget(fullName)
	return nil
}

// Refresh refetches every saved repository, a bounded number at a time, and
// replaces the entries in place. Nothing is replaced if any lookup fails.
func (e *Explorer) Refresh(ctx context.Context) error {
	current := e.List()
	fresh := make([]Repository, len(current))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, r := range current {
		g.Go(func() error {
			e.client.Forget(r.FullName)
			repo, err := e.client.Repository(gctx, r.FullName)
			if err != nil {
				return err
			}
			fresh[i] = repo
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("refresh repositories: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	next := append([]Repository(nil), e.repos...)
	for i, r := range current {
		if j := indexOf(next, r.FullName); j >= 0 {
			next[j] = fresh[i]
		}
	}
	return e.saveLocked(next)
}

// Details fetches a repository and the first page of its issues concurrently.
func (e *Explorer) Details(ctx context.Context, fullName string) (Details, error) {
	if _, _, err := SplitFullName(fullName); err != nil {
		return Details{}, err
	}

	var d Details
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		repo, err := e.client.Repository(gctx, fullName)
		d.Repository = repo
		return err
	})
	g.Go(func() error {
		issues, err := e.client.Issues(gctx, fullName, pagination.New(0, 0))
		d.Issues = issues
		return err
	})
	if err := g.Wait(); err != nil {
		return Details{}, err
	}
	return d, nil
}

func (e *Explorer) contains(fullName string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.indexLocked(fullName) >= 0
}

func (e *Explorer) indexLocked(fullName string) int {
	return indexOf(e.repos, fullName)
}

func (e *Explorer) saveLocked(next []Repository) error {
	if err := storage.SetJSON(e.store, RepositoriesKey, next); err != nil {
		return fmt.Errorf("save repositories: %w", err)
	}
	e.repos = next
	return nil
}

func indexOf(repos []Repository, fullName string) int {
	for i, r := range repos {
		if strings.EqualFold(r.FullName, fullName) {
			return i
		}
	}
	return -1
}
