package store

import (
	"context"
	"time"

	"github.com/hyperengineering/compass/internal/redaction"
	"github.com/hyperengineering/compass/internal/types"
)

// RecordSource is the read-only view of a client's history.
// Methods that can return coach-private data take the caller's FieldPolicy and
// never select a column the policy excludes.
type RecordSource interface {
	GetEngagement(ctx context.Context, id string, policy redaction.FieldPolicy) (*types.Engagement, error)
	GetActiveEngagement(ctx context.Context, clientID string, policy redaction.FieldPolicy) (*types.Engagement, error)
	ListMarkers(ctx context.Context, engagementID string, limit int) ([]types.Marker, error)
	ListSnapshots(ctx context.Context, clientID string, w types.Window, limit int) ([]types.Snapshot, error)
	ListMicroEntries(ctx context.Context, clientID string, w types.Window, limit int) ([]types.MicroEntry, error)
	ListSessionRecords(ctx context.Context, clientID string, w types.Window, limit int, policy redaction.FieldPolicy) ([]types.SessionRecord, error)
	ListCoachNotes(ctx context.Context, clientID string, w types.Window, limit int, policy redaction.FieldPolicy) ([]types.CoachNote, error)
	ListAudioMemos(ctx context.Context, clientID string, w types.Window, limit int) ([]types.AudioMemo, error)
	ListUploadedFiles(ctx context.Context, clientID string, w types.Window, limit int) ([]types.UploadedFile, error)
}

// UpsertReport carries the content of one weekly report write.
type UpsertReport struct {
	EngagementID  string
	ClientID      string
	PeriodNumber  int
	Phase         types.Phase
	ClientView    types.ClientView
	CoachView     types.CoachView
	SourceSummary types.SourceSummary
	WindowStart   time.Time
	WindowEnd     time.Time
}

// ReportStore persists weekly reports keyed by (engagement, period).
type ReportStore interface {
	UpsertWeeklyReport(ctx context.Context, in UpsertReport) (*types.WeeklyReport, bool, error)
	GetWeeklyReport(ctx context.Context, engagementID string, period int) (*types.WeeklyReport, error)
	ListWeeklyReports(ctx context.Context, engagementID string) ([]types.WeeklyReport, error)
	SetReportStatus(ctx context.Context, engagementID string, period int, status types.ReportStatus) (*types.WeeklyReport, error)
	CountReports(ctx context.Context) (int64, error)
}

// Store is the full storage contract backed by one database.
type Store interface {
	RecordSource
	ReportStore
	Close() error
}
