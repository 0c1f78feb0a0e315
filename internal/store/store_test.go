package store

import (
	"context"

	"github.com/hyperengineering/compass/internal/redaction"
	"github.com/hyperengineering/compass/internal/types"
)

// mockStore is a compile-time check that the Store interface can be implemented.
type mockStore struct{}

var _ Store = (*mockStore)(nil)

func (m *mockStore) GetEngagement(ctx context.Context, id string, policy redaction.FieldPolicy) (*types.Engagement, error) {
	return nil, nil
}
func (m *mockStore) GetActiveEngagement(ctx context.Context, clientID string, policy redaction.FieldPolicy) (*types.Engagement, error) {
	return nil, nil
}
func (m *mockStore) ListMarkers(ctx context.Context, engagementID string, limit int) ([]types.Marker, error) {
	return nil, nil
}
func (m *mockStore) ListSnapshots(ctx context.Context, clientID string, w types.Window, limit int) ([]types.Snapshot, error) {
	return nil, nil
}
func (m *mockStore) ListMicroEntries(ctx context.Context, clientID string, w types.Window, limit int) ([]types.MicroEntry, error) {
	return nil, nil
}
func (m *mockStore) ListSessionRecords(ctx context.Context, clientID string, w types.Window, limit int, policy redaction.FieldPolicy) ([]types.SessionRecord, error) {
	return nil, nil
}
func (m *mockStore) ListCoachNotes(ctx context.Context, clientID string, w types.Window, limit int, policy redaction.FieldPolicy) ([]types.CoachNote, error) {
	return nil, nil
}
func (m *mockStore) ListAudioMemos(ctx context.Context, clientID string, w types.Window, limit int) ([]types.AudioMemo, error) {
	return nil, nil
}
func (m *mockStore) ListUploadedFiles(ctx context.Context, clientID string, w types.Window, limit int) ([]types.UploadedFile, error) {
	return nil, nil
}
func (m *mockStore) UpsertWeeklyReport(ctx context.Context, in UpsertReport) (*types.WeeklyReport, bool, error) {
	return nil, false, nil
}
func (m *mockStore) GetWeeklyReport(ctx context.Context, engagementID string, period int) (*types.WeeklyReport, error) {
	return nil, nil
}
func (m *mockStore) ListWeeklyReports(ctx context.Context, engagementID string) ([]types.WeeklyReport, error) {
	return nil, nil
}
func (m *mockStore) SetReportStatus(ctx context.Context, engagementID string, period int, status types.ReportStatus) (*types.WeeklyReport, error) {
	return nil, nil
}
func (m *mockStore) CountReports(ctx context.Context) (int64, error) {
	return 0, nil
}
func (m *mockStore) Close() error {
	return nil
}
