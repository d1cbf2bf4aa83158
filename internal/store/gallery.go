// ABOUTME: Gallery image records and their store methods
// ABOUTME: Public reads see only active images, deletes are soft (is_active = 0)

package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CategoryAll disables category filtering in GalleryFilter.
const CategoryAll = "all"

// DefaultGalleryLimit is used when GalleryFilter.Limit is not positive.
const DefaultGalleryLimit = 50

// GalleryImage is a single entry in the public gallery.
type GalleryImage struct {
	ID          string
	Title       string
	Description string
	ImageURL    string
	Category    string
	IsActive    bool
	CreatedAt   time.Time
}

// GalleryFilter narrows ListGalleryImages.
type GalleryFilter struct {
	// Category filters by exact category. Empty or "all" means no filter.
	Category string
	Limit    int
}

const galleryColumns = `id, title, description, image_url, category, is_active, created_at`

// ListGalleryImages returns active images, newest first.
func (q *queries) ListGalleryImages(ctx context.Context, f GalleryFilter) ([]*GalleryImage, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultGalleryLimit
	}

	var sb strings.Builder
	args := make([]any, 0, 2)
	sb.WriteString(`SELECT ` + galleryColumns + ` FROM gallery_images WHERE is_active = 1`)
	if f.Category != "" && f.Category != CategoryAll {
		sb.WriteString(` AND category = ?`)
		args = append(args, f.Category)
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC LIMIT ?`)
	args = append(args, limit)

	records, err := q.Query(ctx, Query{Text: sb.String(), Args: args})
	if err != nil {
		return nil, wrapErr("list gallery images", err)
	}

	images := make([]*GalleryImage, 0, len(records))
	for _, r := range records {
		images = append(images, galleryFromRecord(r))
	}
	return images, nil
}

// GetGalleryImage returns an image by ID regardless of its active flag.
func (q *queries) GetGalleryImage(ctx context.Context, id string) (*GalleryImage, error) {
	r, err := q.QueryOne(ctx, Q(`SELECT `+galleryColumns+` FROM gallery_images WHERE id = ?`, id))
	if err != nil {
		return nil, wrapErr("get gallery image", err)
	}
	return galleryFromRecord(r), nil
}

// CreateGalleryImage inserts a new image. ID and CreatedAt are filled in when empty.
func (q *queries) CreateGalleryImage(ctx context.Context, img *GalleryImage) error {
	if img.ImageURL == "" {
		return &StoreError{Op: "create gallery image", Err: errors.New("image_url is required")}
	}
	if img.ID == "" {
		img.ID = uuid.New().String()
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now()
	}
	if img.Category == "" {
		img.Category = "general"
	}

	_, err := q.Exec(ctx, Q(`
		INSERT INTO gallery_images (id, title, description, image_url, category, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.Title, img.Description, img.ImageURL, img.Category, boolToInt(img.IsActive), formatTime(img.CreatedAt),
	))
	if err != nil {
		return wrapErr("create gallery image", err)
	}

	q.logger.Info("created gallery image", "id", img.ID, "category", img.Category)
	return nil
}

// DeactivateGalleryImage hides an image from the public gallery.
func (q *queries) DeactivateGalleryImage(ctx context.Context, id string) error {
	res, err := q.Exec(ctx, Q(`UPDATE gallery_images SET is_active = 0 WHERE id = ?`, id))
	if err != nil {
		return wrapErr("deactivate gallery image", err)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	q.logger.Info("deactivated gallery image", "id", id)
	return nil
}

func galleryFromRecord(r Record) *GalleryImage {
	return &GalleryImage{
		ID:          r.String("id"),
		Title:       r.String("title"),
		Description: r.String("description"),
		ImageURL:    r.String("image_url"),
		Category:    r.String("category"),
		IsActive:    r.Bool("is_active"),
		CreatedAt:   r.Time("created_at"),
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
