package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"inkwell/internal/cache"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/pagination"
	"inkwell/internal/repository"
)

const (
	TierRanked   = "ranked"
	TierFallback = "fallback"

	DefaultAutocompleteLimit = 10
	MaxAutocompleteLimit     = 20
	maxQueryLength           = 100
)

// SearchPage is a search result page and the tier that produced it.
type SearchPage[T any] struct {
	pagination.Page[T]
	TotalResults int64  `json:"totalResults"`
	HasNext      bool   `json:"hasNext"`
	Tier         string `json:"tier"`
}

func newSearchPage[T any](items []T, p pagination.Params, total int64, tier string) SearchPage[T] {
	page := pagination.NewPage(items, p, total)
	return SearchPage[T]{
		Page:         page,
		TotalResults: total,
		HasNext:      page.CurrentPage < page.TotalPages,
		Tier:         tier,
	}
}

// PostSuggestion is an autocomplete hit for posts.
type PostSuggestion struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

type SearchService struct {
	search repository.SearchRepository
	posts  repository.PostRepository
	cache  *cache.Store
}

func NewSearchService(search repository.SearchRepository, posts repository.PostRepository, store *cache.Store) *SearchService {
	return &SearchService{search: search, posts: posts, cache: store}
}

func normalizeQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", models.NewValidationError("Search query is required")
	}
	if utf8.RuneCountInString(q) > maxQueryLength {
		return "", models.NewValidationError("Search query is too long")
	}
	return q, nil
}

// Posts runs the ranked search and falls back to substring matching when it finds nothing.
func (s *SearchService) Posts(ctx context.Context, q string, viewerID uint, p pagination.Params) (SearchPage[models.PostView], error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return SearchPage[models.PostView]{}, err
	}

	tier := TierRanked
	posts, total, err := s.search.RankedPosts(ctx, q, p.Offset(), p.Limit)
	if err != nil {
		return SearchPage[models.PostView]{}, err
	}
	if total == 0 {
		tier = TierFallback
		if posts, total, err = s.search.FallbackPosts(ctx, q, p.Offset(), p.Limit); err != nil {
			return SearchPage[models.PostView]{}, err
		}
	}
	observability.SearchQueries.WithLabelValues("posts", tier).Inc()

	views, err := postViews(ctx, s.posts, viewerID, posts)
	if err != nil {
		return SearchPage[models.PostView]{}, err
	}
	return newSearchPage(views, p, total, tier), nil
}

// Users is Posts for people.
func (s *SearchService) Users(ctx context.Context, q string, p pagination.Params) (SearchPage[models.PublicUser], error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return SearchPage[models.PublicUser]{}, err
	}

	tier := TierRanked
	users, total, err := s.search.RankedUsers(ctx, q, p.Offset(), p.Limit)
	if err != nil {
		return SearchPage[models.PublicUser]{}, err
	}
	if total == 0 {
		tier = TierFallback
		if users, total, err = s.search.FallbackUsers(ctx, q, p.Offset(), p.Limit); err != nil {
			return SearchPage[models.PublicUser]{}, err
		}
	}
	observability.SearchQueries.WithLabelValues("users", tier).Inc()

	cards := make([]models.PublicUser, 0, len(users))
	for i := range users {
		cards = append(cards, users[i].Public())
	}
	return newSearchPage(cards, p, total, tier), nil
}

// AutocompleteLimit applies the default and the cap.
func AutocompleteLimit(limit int) int {
	if limit < 1 {
		return DefaultAutocompleteLimit
	}
	return min(limit, MaxAutocompleteLimit)
}

// AutocompletePosts matches published posts by prefix. Results are cached briefly.
func (s *SearchService) AutocompletePosts(ctx context.Context, prefix string, limit int) ([]PostSuggestion, error) {
	prefix, err := normalizeQuery(prefix)
	if err != nil {
		return nil, err
	}
	limit = AutocompleteLimit(limit)

	var out []PostSuggestion
	err = s.cache.Aside(ctx, cache.AutocompleteKey("posts", prefix, limit), &out, cache.AutocompleteTTL, func() error {
		posts, err := s.search.AutocompletePosts(ctx, prefix, limit)
		if err != nil {
			return err
		}
		out = make([]PostSuggestion, 0, len(posts))
		for _, p := range posts {
			out = append(out, PostSuggestion{Title: p.Title, Slug: p.Slug})
		}
		return nil
	})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Autocomplete failed", slog.String("kind", "posts"), slog.String("error", err.Error()))
		return nil, err
	}
	return out, nil
}

// AutocompleteUsers matches users by username or name prefix.
func (s *SearchService) AutocompleteUsers(ctx context.Context, prefix string, limit int) ([]models.PublicUser, error) {
	prefix, err := normalizeQuery(prefix)
	if err != nil {
		return nil, err
	}
	limit = AutocompleteLimit(limit)

	var out []models.PublicUser
	err = s.cache.Aside(ctx, cache.AutocompleteKey("users", prefix, limit), &out, cache.AutocompleteTTL, func() error {
		users, err := s.search.AutocompleteUsers(ctx, prefix, limit)
		if err != nil {
			return err
		}
		out = make([]models.PublicUser, 0, len(users))
		for i := range users {
			out = append(out, users[i].Public())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
