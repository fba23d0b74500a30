// Package capture implements the share-extension side of ClipBox: it
// writes newly captured clips into the staging area and creates local tags
// as dirty reference records, without ever opening the primary store.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipbox/clipbox/internal/domain"
	domainerrors "github.com/clipbox/clipbox/internal/errors"
	"github.com/clipbox/clipbox/internal/id"
	"github.com/clipbox/clipbox/internal/media/images"
	"github.com/clipbox/clipbox/internal/normalize"
	"github.com/clipbox/clipbox/internal/store"
)

// maxImages bounds one capture.
const maxImages = 64

// Image is one captured image.
type Image struct {
	URL      *string
	FileName string
	Data     []byte
}

// Request describes one capture.
type Request struct {
	Description *string
	Hidden      bool
	TagNames    []string
	Images      []Image
}

// RecipeValidator checks a recipe before it is staged.
type RecipeValidator interface {
	Validate(s any) error
}

// Capturer writes captures into the staging area.
type Capturer struct {
	staging       store.TemporaryClipStorage
	stagingImages store.TemporaryImageStorage
	reference     store.ReferenceClipStorage
	processor     *images.Processor
	validator     RecipeValidator
	logger        *slog.Logger
}

// New creates a Capturer.
func New(
	staging store.TemporaryClipStorage,
	stagingImages store.TemporaryImageStorage,
	reference store.ReferenceClipStorage,
	processor *images.Processor,
	validator RecipeValidator,
	logger *slog.Logger,
) *Capturer {
	return &Capturer{
		staging:       staging,
		stagingImages: stagingImages,
		reference:     reference,
		processor:     processor,
		validator:     validator,
		logger:        logger,
	}
}

// Capture stages a clip. Images are saved first and the recipe last, so a
// persist pass never sees a recipe whose images are still being written.
// Tag names unknown to the reference store become dirty reference tags in
// the same transaction as the recipe.
func (c *Capturer) Capture(ctx context.Context, req Request) (*domain.ClipRecipe, error) {
	if len(req.Images) == 0 {
		return nil, domainerrors.Validation("a capture needs at least one image")
	}
	if len(req.Images) > maxImages {
		return nil, domainerrors.Validationf("a capture holds at most %d images", maxImages)
	}

	now := time.Now()
	recipe := &domain.ClipRecipe{
		ID:           id.NewUUID(),
		Description:  req.Description,
		IsHidden:     req.Hidden,
		RegisteredAt: now,
		UpdatedAt:    now,
	}

	// 1. Probe images.
	for i, img := range req.Images {
		info, err := c.processor.Process(img.Data)
		if err != nil {
			return nil, domainerrors.Validationf("image %d: %v", i, err)
		}
		recipe.Items = append(recipe.Items, domain.ClipItemRecipe{
			ID:            id.NewUUID(),
			URL:           img.URL,
			ClipID:        recipe.ID,
			ClipIndex:     i,
			ImageID:       id.NewUUID(),
			ImageFileName: stagedFileName(i, img.FileName, info.Format),
			ImageWidth:    info.Width,
			ImageHeight:   info.Height,
			ImageSize:     info.Size,
			BlurHash:      info.BlurHash,
			RegisteredAt:  now,
			UpdatedAt:     now,
		})
		recipe.DataSize += info.Size
	}

	// 2. Resolve tags, minting dirty ones for new names.
	tagIDs, newTags, err := c.resolveTags(ctx, req.TagNames)
	if err != nil {
		return nil, err
	}
	recipe.TagIDs = tagIDs

	if err := c.validator.Validate(recipe); err != nil {
		return nil, err
	}

	// 3. Stage image bytes.
	for i, item := range recipe.Items {
		if err := c.stagingImages.Save(recipe.ID, item.ImageFileName, req.Images[i].Data); err != nil {
			c.discardImages(recipe.ID)
			return nil, fmt.Errorf("stage image %d: %w", i, err)
		}
	}

	// 4. Recipe and new tags together.
	if err := c.commitRecipe(ctx, recipe, newTags); err != nil {
		c.discardImages(recipe.ID)
		return nil, err
	}

	c.logger.Info("clip captured",
		"clip_id", recipe.ID,
		"images", len(recipe.Items),
		"tags", len(recipe.TagIDs),
		"new_tags", len(newTags),
	)
	return recipe, nil
}

func (c *Capturer) commitRecipe(ctx context.Context, recipe *domain.ClipRecipe, newTags []*domain.ReferenceTag) error {
	ts, err := store.BeginAll(ctx, c.staging, c.reference)
	if err != nil {
		return err
	}
	defer ts.Cancel() //nolint:errcheck // No-op after commit

	if len(newTags) > 0 {
		if err := c.reference.CreateTags(ctx, newTags); err != nil {
			return fmt.Errorf("create local tags: %w", err)
		}
	}
	if err := c.staging.CreateClip(ctx, recipe); err != nil {
		return fmt.Errorf("stage clip: %w", err)
	}
	return ts.Commit()
}

func (c *Capturer) discardImages(clipID string) {
	if err := c.stagingImages.DeleteAll(clipID); err != nil {
		c.logger.Warn("failed to discard staged images", "clip_id", clipID, "error", err)
	}
}

// CreateTag creates a dirty reference tag, or returns the existing tag with
// the same normalized name.
func (c *Capturer) CreateTag(ctx context.Context, name string) (*domain.ReferenceTag, error) {
	display := normalize.DisplayName(name)
	if display == "" {
		return nil, domainerrors.Validation("tag name is empty")
	}

	existing, err := c.reference.ReadAllTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("read tags: %w", err)
	}
	key := normalize.TagName(display)
	for _, t := range existing {
		if normalize.TagName(t.Name) == key {
			return t, nil
		}
	}

	tag := &domain.ReferenceTag{ID: id.MustGenerate("tag"), Name: display, IsDirty: true}
	if err := c.reference.CreateTags(ctx, []*domain.ReferenceTag{tag}); err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	c.logger.Info("local tag created", "tag_id", tag.ID, "name", tag.Name)
	return tag, nil
}

// resolveTags maps names to reference tag ids. Names are matched by their
// normalized form; repeated names within one request collapse.
func (c *Capturer) resolveTags(ctx context.Context, names []string) ([]string, []*domain.ReferenceTag, error) {
	if len(names) == 0 {
		return nil, nil, nil
	}

	existing, err := c.reference.ReadAllTags(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read tags: %w", err)
	}
	byKey := make(map[string]string, len(existing))
	for _, t := range existing {
		byKey[normalize.TagName(t.Name)] = t.ID
	}

	var (
		ids     []string
		created []*domain.ReferenceTag
		seen    = make(map[string]bool)
	)
	for _, raw := range names {
		display := normalize.DisplayName(raw)
		if display == "" {
			continue
		}
		key := normalize.TagName(display)
		if seen[key] {
			continue
		}
		seen[key] = true

		if tagID, ok := byKey[key]; ok {
			ids = append(ids, tagID)
			continue
		}
		tag := &domain.ReferenceTag{ID: id.MustGenerate("tag"), Name: display, IsDirty: true}
		created = append(created, tag)
		ids = append(ids, tag.ID)
	}
	return ids, created, nil
}

// stagedFileName names a staged image by its position, keeping a safe
// extension from the original name or the probed format.
func stagedFileName(index int, original, format string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
	default:
		ext = "." + format
	}
	return fmt.Sprintf("%d%s", index, ext)
}
