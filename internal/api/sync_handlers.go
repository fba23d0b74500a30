package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipbox/clipbox/internal/domain"
)

func (s *Server) registerSyncRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "applyRemoteBatch",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/remote",
		Summary:     "Apply a remote change batch",
		Description: "Applies records delivered by the cloud sync layer, deduplicates the touched tags and album items, then reconciles.",
		Tags:        []string{"Sync"},
		Middlewares: s.rateLimited(),
	}, s.handleApplyRemoteBatch)
}

// RemoteBatchInput is the request of applyRemoteBatch.
type RemoteBatchInput struct {
	Body domain.RemoteBatch
}

// RemoteChangesOutput reports what the batch touched.
type RemoteChangesOutput struct {
	Body domain.RemoteChanges
}

func (s *Server) handleApplyRemoteBatch(ctx context.Context, input *RemoteBatchInput) (*RemoteChangesOutput, error) {
	changes, err := s.coordinator.ApplyRemoteBatch(ctx, &input.Body)
	if err != nil {
		s.logger.Error("remote batch failed", "error", err)
		return nil, huma.Error500InternalServerError("apply remote batch failed", err)
	}
	return &RemoteChangesOutput{Body: changes}, nil
}
