// Package report runs the batch weekly narrative pipeline: fetch the client's
// history, render it, generate both views in one call, parse them, and store
// the result idempotently per engagement period.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/compass/internal/archive"
	"github.com/hyperengineering/compass/internal/fetch"
	"github.com/hyperengineering/compass/internal/generation"
	"github.com/hyperengineering/compass/internal/narrative"
	"github.com/hyperengineering/compass/internal/redaction"
	"github.com/hyperengineering/compass/internal/render"
	"github.com/hyperengineering/compass/internal/store"
	"github.com/hyperengineering/compass/internal/types"
)

// DefaultWindow is the trailing period covered when a request names no window.
const DefaultWindow = 7 * 24 * time.Hour

// ErrInvalidWindow is returned when the window start is not before its end.
var ErrInvalidWindow = errors.New("window start must be before window end")

// RecordFetcher fetches a client's history for one window.
type RecordFetcher interface {
	Fetch(ctx context.Context, q fetch.Query) (*fetch.RecordSet, error)
}

// Service generates and manages weekly reports.
type Service struct {
	fetcher   RecordFetcher
	renderer  *render.Renderer
	generator generation.Generator
	reports   store.ReportStore
	archiver  archive.Archiver
	window    time.Duration
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithWindow sets the default trailing window.
func WithWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithArchiver sets where stored reports are copied.
func WithArchiver(a archive.Archiver) Option {
	return func(s *Service) {
		if a != nil {
			s.archiver = a
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a report Service.
func NewService(fetcher RecordFetcher, renderer *render.Renderer, generator generation.Generator, reports store.ReportStore, opts ...Option) *Service {
	s := &Service{
		fetcher:   fetcher,
		renderer:  renderer,
		generator: generator,
		reports:   reports,
		archiver:  &archive.NoopArchiver{},
		window:    DefaultWindow,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window resolves the requested window. A missing end is now; a missing start
// is the default window before the end.
func (s *Service) Window(req types.ReportRequest) (types.Window, error) {
	end := s.now().UTC()
	if req.WindowEnd != nil {
		end = req.WindowEnd.UTC()
	}
	start := end.Add(-s.window)
	if req.WindowStart != nil {
		start = req.WindowStart.UTC()
	}
	if !start.Before(end) {
		return types.Window{}, ErrInvalidWindow
	}
	return types.Window{Start: start, End: end}, nil
}

// Generate runs the pipeline for one request. Both views come from a single
// generation call over the coach-tier context. Nothing is stored when fetching
// the engagement, generation or parsing fails.
func (s *Service) Generate(ctx context.Context, req types.ReportRequest) (*types.ReportResponse, error) {
	w, err := s.Window(req)
	if err != nil {
		return nil, err
	}

	policy := redaction.Tier(types.AudienceCoach)
	rs, err := s.fetcher.Fetch(ctx, fetch.Query{
		ClientID:     req.ClientID,
		EngagementID: req.EngagementID,
		Window:       w,
		Policy:       policy,
	})
	if err != nil {
		return nil, err
	}

	doc := s.renderer.Render(rs, policy)

	raw, err := s.generator.Generate(ctx, generation.Request{
		Instructions: generation.NarrativeMapInstructions,
		Content:      doc,
	})
	if err != nil {
		return nil, fmt.Errorf("generate narrative: %w", err)
	}

	out, err := narrative.Parse(raw)
	if err != nil {
		slog.Warn("narrative output rejected",
			"component", "report",
			"client_id", req.ClientID,
			"engagement_id", rs.Engagement.ID,
			"raw_length", len(raw),
			"error", err,
		)
		return nil, err
	}

	summary := rs.Summary()
	stored, created, err := s.reports.UpsertWeeklyReport(ctx, store.UpsertReport{
		EngagementID:  rs.Engagement.ID,
		ClientID:      rs.Engagement.ClientID,
		PeriodNumber:  PeriodNumber(rs.Engagement),
		Phase:         rs.Engagement.Phase,
		ClientView:    out.ClientView,
		CoachView:     out.CoachView,
		SourceSummary: summary,
		WindowStart:   w.Start,
		WindowEnd:     w.End,
	})
	if err != nil {
		return nil, fmt.Errorf("store weekly report: %w", err)
	}

	// The report is already stored; an archive failure is only logged.
	if err := s.archiver.Archive(ctx, stored); err != nil {
		slog.Warn("report archive failed",
			"component", "report",
			"report_id", stored.ID,
			"error", err,
		)
	}

	slog.Info("weekly report generated",
		"component", "report",
		"report_id", stored.ID,
		"engagement_id", stored.EngagementID,
		"period", stored.PeriodNumber,
		"created", created,
		"failed_sources", rs.Failed,
	)

	return &types.ReportResponse{
		ReportID:      stored.ID,
		Created:       created,
		ClientView:    stored.ClientView,
		CoachView:     stored.CoachView,
		PeriodNumber:  stored.PeriodNumber,
		Window:        w,
		SourceSummary: summary,
	}, nil
}

// Get returns the report of one engagement period.
func (s *Service) Get(ctx context.Context, engagementID string, period int) (*types.WeeklyReport, error) {
	return s.reports.GetWeeklyReport(ctx, engagementID, period)
}

// List returns the reports of an engagement, latest period first.
func (s *Service) List(ctx context.Context, engagementID string) ([]types.WeeklyReport, error) {
	return s.reports.ListWeeklyReports(ctx, engagementID)
}

// Publish marks a report as published and archives the published copy.
func (s *Service) Publish(ctx context.Context, engagementID string, period int) (*types.WeeklyReport, error) {
	r, err := s.reports.SetReportStatus(ctx, engagementID, period, types.ReportPublished)
	if err != nil {
		return nil, err
	}
	if err := s.archiver.Archive(ctx, r); err != nil {
		slog.Warn("report archive failed",
			"component", "report",
			"report_id", r.ID,
			"error", err,
		)
	}
	return r, nil
}

// PeriodNumber is the engagement's current program week, at least 1.
func PeriodNumber(e *types.Engagement) int {
	if e == nil || e.WeekInProgram < 1 {
		return 1
	}
	return e.WeekInProgram
}
