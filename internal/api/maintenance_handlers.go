package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipbox/clipbox/internal/integrity"
	"github.com/clipbox/clipbox/internal/migration"
	"github.com/clipbox/clipbox/internal/service"
)

func (s *Server) registerMaintenanceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "reconcile",
		Method:      http.MethodPost,
		Path:        "/api/v1/maintenance/reconcile",
		Summary:     "Reconcile reference store",
		Description: "Brings the reference store in line with the primary store. Dirty reference records are left untouched.",
		Tags:        []string{"Maintenance"},
		Middlewares: s.rateLimited(),
	}, s.handleReconcile)

	huma.Register(s.api, huma.Operation{
		OperationID: "persist",
		Method:      http.MethodPost,
		Path:        "/api/v1/maintenance/persist",
		Summary:     "Persist staged clips",
		Description: "Flushes dirty tags and moves staged clips into the primary store. Returns ok=true without doing anything when a pass is already running.",
		Tags:        []string{"Maintenance"},
		Middlewares: s.rateLimited(),
	}, s.handlePersist)

	huma.Register(s.api, huma.Operation{
		OperationID: "foreground",
		Method:      http.MethodPost,
		Path:        "/api/v1/maintenance/foreground",
		Summary:     "Run a foreground pass",
		Description: "Persists staged clips, then reconciles, under one lock hold.",
		Tags:        []string{"Maintenance"},
		Middlewares: s.rateLimited(),
	}, s.handleForeground)

	huma.Register(s.api, huma.Operation{
		OperationID: "maintenanceStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/maintenance/status",
		Summary:     "Store status",
		Description: "Returns record counts of every store and whether a persist pass is running.",
		Tags:        []string{"Maintenance"},
	}, s.handleStatus)
}

// ReconcileOutput is the result of a reconcile pass.
type ReconcileOutput struct {
	Body integrity.Report
}

// PersistResponse describes a persist request.
type PersistResponse struct {
	OK            bool                   `json:"ok" doc:"False when any staged clip failed or the pass aborted"`
	Skipped       bool                   `json:"skipped,omitempty" doc:"Another pass was already running"`
	FlushedTags   []string               `json:"flushed_tags,omitempty"`
	DiscardedTags []string               `json:"discarded_tags,omitempty"`
	Migrated      []string               `json:"migrated,omitempty"`
	Failed        []migration.FailedClip `json:"failed,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

// PersistOutput wraps PersistResponse for Huma.
type PersistOutput struct {
	Body PersistResponse
}

// ForegroundResponse combines a persist outcome with the reconcile report.
type ForegroundResponse struct {
	Persist   PersistResponse  `json:"persist"`
	Reconcile integrity.Report `json:"reconcile"`
}

// ForegroundOutput wraps ForegroundResponse for Huma.
type ForegroundOutput struct {
	Body ForegroundResponse
}

// StatusOutput wraps service.Status for Huma.
type StatusOutput struct {
	Body service.Status
}

func (s *Server) handleReconcile(ctx context.Context, _ *struct{}) (*ReconcileOutput, error) {
	report, err := s.coordinator.Reconcile(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("reconcile failed", err)
	}
	return &ReconcileOutput{Body: report}, nil
}

func (s *Server) handlePersist(ctx context.Context, _ *struct{}) (*PersistOutput, error) {
	outcome := s.coordinator.Persister().Persist(ctx, service.TriggerAPI)
	return &PersistOutput{Body: newPersistResponse(outcome)}, nil
}

func (s *Server) handleForeground(ctx context.Context, _ *struct{}) (*ForegroundOutput, error) {
	outcome, report, err := s.coordinator.HandleForeground(ctx, service.TriggerAPI)
	if err != nil {
		return nil, huma.Error500InternalServerError("foreground pass failed", err)
	}
	return &ForegroundOutput{Body: ForegroundResponse{
		Persist:   newPersistResponse(outcome),
		Reconcile: report,
	}}, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
	status, err := s.coordinator.Status(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("read status failed", err)
	}
	return &StatusOutput{Body: status}, nil
}

func newPersistResponse(o service.PersistOutcome) PersistResponse {
	resp := PersistResponse{
		OK:            o.OK(),
		Skipped:       o.Skipped,
		FlushedTags:   o.Result.FlushedTags,
		DiscardedTags: o.Result.DiscardedTags,
		Migrated:      o.Result.Migrated,
		Failed:        o.Result.Failed,
	}
	if o.Err != nil {
		resp.Error = o.Err.Error()
	}
	return resp
}
