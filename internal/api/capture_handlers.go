package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipbox/clipbox/internal/capture"
	"github.com/clipbox/clipbox/internal/domain"
	domainerrors "github.com/clipbox/clipbox/internal/errors"
)

// ClipCapturer stages new clips.
type ClipCapturer interface {
	Capture(ctx context.Context, req capture.Request) (*domain.ClipRecipe, error)
}

func (s *Server) registerCaptureRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "captureClip",
		Method:        http.MethodPost,
		Path:          "/api/v1/capture",
		Summary:       "Stage a clip",
		Description:   "Writes a clip and its images into the staging area. The clip reaches the primary store on the next persist pass.",
		Tags:          []string{"Capture"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   s.rateLimited(),
	}, s.handleCapture)
}

// CaptureImage is one image of a capture request.
type CaptureImage struct {
	URL      *string `json:"url,omitempty" maxLength:"2048" doc:"Source URL of the image"`
	FileName string  `json:"file_name" minLength:"1" maxLength:"255" doc:"Original file name"`
	Data     []byte  `json:"data" doc:"Image bytes, base64 encoded"`
}

// CaptureInput is the request of captureClip.
type CaptureInput struct {
	Body struct {
		Description *string        `json:"description,omitempty" maxLength:"4096" doc:"Clip description"`
		Hidden      bool           `json:"hidden,omitempty" doc:"Hide the clip"`
		TagNames    []string       `json:"tag_names,omitempty" maxItems:"64" doc:"Tag names; unknown names become local tags"`
		Images      []CaptureImage `json:"images" minItems:"1" maxItems:"64" doc:"Images in clip order"`
	}
}

// CaptureOutput returns the staged recipe.
type CaptureOutput struct {
	Body *domain.ClipRecipe
}

func (s *Server) handleCapture(ctx context.Context, input *CaptureInput) (*CaptureOutput, error) {
	req := capture.Request{
		Description: input.Body.Description,
		Hidden:      input.Body.Hidden,
		TagNames:    input.Body.TagNames,
		Images:      make([]capture.Image, 0, len(input.Body.Images)),
	}
	for _, img := range input.Body.Images {
		req.Images = append(req.Images, capture.Image{URL: img.URL, FileName: img.FileName, Data: img.Data})
	}

	// Staging writes wait for a pass in flight; its final sweep clears the
	// whole staging area.
	var recipe *domain.ClipRecipe
	err := s.coordinator.Exclusive(ctx, func(ctx context.Context) error {
		var err error
		recipe, err = s.capturer.Capture(ctx, req)
		return err
	})
	if err != nil {
		var coded *domainerrors.Error
		if errors.As(err, &coded) {
			return nil, huma.Error400BadRequest(coded.Message, err)
		}
		s.logger.Error("capture failed", "error", err)
		return nil, huma.Error500InternalServerError("capture failed", err)
	}
	return &CaptureOutput{Body: recipe}, nil
}
