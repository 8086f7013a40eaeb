package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

const (
	maxBaseSlugLength = 140
	fallbackSlug      = "post"
	// maxSlugProbes bounds the suffix search; hitting it means something is badly wrong.
	maxSlugProbes = 10000
)

// BaseSlug derives the deterministic slug for a title: lowercase ASCII, punctuation removed,
// words joined by hyphens.
func BaseSlug(title string) string {
	s := slug.Make(title)
	if len(s) > maxBaseSlugLength {
		s = strings.TrimRight(s[:maxBaseSlugLength], "-")
	}
	if s == "" {
		return fallbackSlug
	}
	return s
}

// UniqueSlug returns base if free, otherwise base-1, base-2, ... until taken reports false.
func UniqueSlug(ctx context.Context, base string, taken func(ctx context.Context, candidate string) (bool, error)) (string, error) {
	candidate := base
	for n := 1; n <= maxSlugProbes; n++ {
		used, err := taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", base, maxSlugProbes)
}
