package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipbox/clipbox/internal/domain"
)

func (s *Server) registerClipRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Tags:        []string{"Clips"},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "listClips",
		Method:      http.MethodGet,
		Path:        "/api/v1/clips",
		Summary:     "List clips",
		Description: "Returns primary-store clips in registration order.",
		Tags:        []string{"Clips"},
	}, s.handleListClips)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchClips",
		Method:      http.MethodGet,
		Path:        "/api/v1/clips/search",
		Summary:     "Search clips",
		Description: "Full-text search over clip descriptions, tag names and source URLs.",
		Tags:        []string{"Clips"},
	}, s.handleSearchClips)
}

// TagsOutput lists tags.
type TagsOutput struct {
	Body struct {
		Tags []*domain.Tag `json:"tags"`
	}
}

// ListClipsInput filters the clip list.
type ListClipsInput struct {
	IncludeHidden bool `query:"include_hidden" doc:"Include hidden clips"`
}

// ClipsOutput lists clips.
type ClipsOutput struct {
	Body struct {
		Clips []*domain.Clip `json:"clips"`
	}
}

// SearchClipsInput is the request of searchClips.
type SearchClipsInput struct {
	Query string `query:"q" maxLength:"256" doc:"Search terms; empty lists recent clips"`
	Limit int    `query:"limit" minimum:"0" maximum:"500" default:"50" doc:"Maximum results"`
}

func (s *Server) handleListTags(ctx context.Context, _ *struct{}) (*TagsOutput, error) {
	tags, err := s.coordinator.ReadAllTags(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("read tags failed", err)
	}
	out := &TagsOutput{}
	out.Body.Tags = tags
	return out, nil
}

func (s *Server) handleListClips(ctx context.Context, input *ListClipsInput) (*ClipsOutput, error) {
	clips, err := s.coordinator.ReadAllClips(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("read clips failed", err)
	}
	out := &ClipsOutput{}
	out.Body.Clips = make([]*domain.Clip, 0, len(clips))
	for _, c := range clips {
		if c.IsHidden && !input.IncludeHidden {
			continue
		}
		out.Body.Clips = append(out.Body.Clips, c)
	}
	return out, nil
}

func (s *Server) handleSearchClips(ctx context.Context, input *SearchClipsInput) (*ClipsOutput, error) {
	if s.search == nil {
		return nil, huma.Error503ServiceUnavailable("search is not configured")
	}
	ids, err := s.search.Search(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("search failed", err)
	}

	clips, err := s.coordinator.ReadAllClips(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("read clips failed", err)
	}
	byID := make(map[string]*domain.Clip, len(clips))
	for _, c := range clips {
		byID[c.ID] = c
	}

	out := &ClipsOutput{}
	out.Body.Clips = make([]*domain.Clip, 0, len(ids))
	for _, id := range ids {
		// The index may briefly lag a delete.
		if c, ok := byID[id]; ok {
			out.Body.Clips = append(out.Body.Clips, c)
		}
	}
	return out, nil
}
