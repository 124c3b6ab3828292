// Package categorylink resolves a supplier's free-text category label to a
// node of the local category tree and maintains the product's denormalized
// category links.
package categorylink

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"supplier-import-service/internal/models"
)

// CategoryStore is the slice of the category repository the linker needs.
// Lookup methods return (nil, nil) when nothing matches; an error means the
// store itself failed.
type CategoryStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	FindByName(ctx context.Context, name string) (*models.Category, error) // case-insensitive exact
	FindBySlug(ctx context.Context, slug string) (*models.Category, error)
	FindMapping(ctx context.Context, supplierCategoryID string) (*models.Category, error)
	FindByNameContains(ctx context.Context, token string) (*models.Category, error)
	ReplaceProductLinks(ctx context.Context, productID uuid.UUID, categoryIDs []uuid.UUID, primaryID uuid.UUID) error
}

// Linker runs the resolution cascade and writes the links
type Linker struct {
	store  CategoryStore
	logger *logrus.Entry
}

// NewLinker creates a Linker
func NewLinker(store CategoryStore, logger *logrus.Logger) *Linker {
	return &Linker{
		store:  store,
		logger: logger.WithField("component", "category-linker"),
	}
}

// strategy is one step of the resolution cascade. Strategies run in order
// with early exit on the first match, so each stays independently testable.
type strategy struct {
	name    string
	resolve func(ctx context.Context) (*models.Category, error)
}

// Link resolves the label through the cascade and, on a match, replaces
// the product's category links with the leaf as primary plus non-primary
// links to its parent and grandparent. Returns false when no strategy
// matched; the product stays uncategorized, which is logged, not fatal.
func (l *Linker) Link(ctx context.Context, productID uuid.UUID, label string, supplierCategoryID string, directCategoryID *uuid.UUID) (bool, error) {
	log := l.logger.WithFields(logrus.Fields{"productId": productID, "label": label})

	for _, s := range l.strategies(label, supplierCategoryID, directCategoryID) {
		category, err := s.resolve(ctx)
		if err != nil {
			return false, err
		}
		if category == nil {
			continue
		}
		log.WithFields(logrus.Fields{"strategy": s.name, "categoryId": category.ID}).
			Debug("Category resolved")
		if err := l.applyLinks(ctx, productID, category); err != nil {
			return false, err
		}
		return true, nil
	}

	log.Info("No category matched, product left uncategorized")
	return false, nil
}

func (l *Linker) strategies(label, supplierCategoryID string, directCategoryID *uuid.UUID) []strategy {
	return []strategy{
		{"direct-id", func(ctx context.Context) (*models.Category, error) {
			if directCategoryID == nil {
				return nil, nil
			}
			return l.store.FindByID(ctx, *directCategoryID)
		}},
		{"supplier-mapping", func(ctx context.Context) (*models.Category, error) {
			if supplierCategoryID == "" {
				return nil, nil
			}
			return l.store.FindMapping(ctx, supplierCategoryID)
		}},
		{"exact-name", func(ctx context.Context) (*models.Category, error) {
			if label == "" {
				return nil, nil
			}
			return l.store.FindByName(ctx, label)
		}},
		{"slug", func(ctx context.Context) (*models.Category, error) {
			if label == "" {
				return nil, nil
			}
			return l.store.FindBySlug(ctx, Slugify(label))
		}},
		{"last-segment", func(ctx context.Context) (*models.Category, error) {
			segment := lastSegment(label)
			if segment == "" || strings.EqualFold(segment, label) {
				return nil, nil
			}
			return l.store.FindByName(ctx, segment)
		}},
		{"token-containment", func(ctx context.Context) (*models.Category, error) {
			for _, token := range longTokens(label) {
				category, err := l.store.FindByNameContains(ctx, token)
				if err != nil {
					return nil, err
				}
				if category != nil {
					return category, nil
				}
			}
			return nil, nil
		}},
	}
}

// applyLinks replaces the product's links with the leaf as primary and its
// parent and grandparent as non-primary, denormalized for fast ancestor
// filtering.
func (l *Linker) applyLinks(ctx context.Context, productID uuid.UUID, leaf *models.Category) error {
	ids := []uuid.UUID{leaf.ID}

	current := leaf
	for depth := 0; depth < 2 && current.ParentID != nil; depth++ {
		parent, err := l.store.FindByID(ctx, *current.ParentID)
		if err != nil {
			return err
		}
		if parent == nil {
			break
		}
		ids = append(ids, parent.ID)
		current = parent
	}

	return l.store.ReplaceProductLinks(ctx, productID, ids, leaf.ID)
}

var (
	slugInvalidRe  = regexp.MustCompile(`[^a-z0-9]+`)
	slugTrimRe     = regexp.MustCompile(`^-+|-+$`)
	tokenSplitRe   = regexp.MustCompile(`[^\pL\pN]+`)
	segmentSplitRe = regexp.MustCompile(`[/\-]`)
)

// Slugify lowercases and collapses a label into a URL-safe slug
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugInvalidRe.ReplaceAllString(s, "-")
	return slugTrimRe.ReplaceAllString(s, "")
}

// lastSegment returns the final "/"- or "-"-delimited part of the label
func lastSegment(label string) string {
	parts := segmentSplitRe.Split(label, -1)
	for i := len(parts) - 1; i >= 0; i-- {
		if segment := strings.TrimSpace(parts[i]); segment != "" {
			return segment
		}
	}
	return ""
}

// longTokens returns the label's word tokens longer than 3 characters,
// longest first, so the most specific word is tried before generic ones.
func longTokens(label string) []string {
	raw := tokenSplitRe.Split(label, -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len(tok) > 3 {
			tokens = append(tokens, tok)
		}
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		return len(tokens[i]) > len(tokens[j])
	})
	return tokens
}
