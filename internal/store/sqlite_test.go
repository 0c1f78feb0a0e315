package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/compass/internal/redaction"
	"github.com/hyperengineering/compass/internal/types"
	_ "modernc.org/sqlite"
)

var (
	coachPolicy  = redaction.Tier(types.AudienceCoach)
	clientPolicy = redaction.Tier(types.AudienceClient)
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "compass.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustExec(t *testing.T, s *SQLiteStore, query string, args ...any) {
	t.Helper()
	if _, err := s.db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func ts(t time.Time) string { return formatTime(t) }

func testWindow(end time.Time) types.Window {
	return types.Window{Start: end.AddDate(0, 0, -7), End: end}
}

func seedEngagement(t *testing.T, s *SQLiteStore, id, clientID, status string, createdAt time.Time) {
	t.Helper()
	mustExec(t, s, `
		INSERT INTO engagements (id, client_id, phase, week_in_program, present_narrative, goals, challenges,
		                         coach_observations, status, created_at)
		VALUES (?, ?, 'validate', 3, 'Leading a new team', '[{"text":"Delegate more","category":"leadership"}]',
		        '[{"text":"Overworking","category":"energy"}]', 'Deflects with humour', ?, ?)
	`, id, clientID, status, ts(createdAt))
}

func TestStore_NewSQLiteStore(t *testing.T) {
	db, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	count, err := db.CountReports(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Expected count 0, got %d", count)
	}
}

func TestGetActiveEngagement_ReturnsMostRecentActive(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	seedEngagement(t, s, "eng-old", "client-1", "active", now.Add(-48*time.Hour))
	seedEngagement(t, s, "eng-new", "client-1", "active", now.Add(-1*time.Hour))
	seedEngagement(t, s, "eng-closed", "client-1", "completed", now)

	e, err := s.GetActiveEngagement(context.Background(), "client-1", coachPolicy)
	if err != nil {
		t.Fatalf("GetActiveEngagement: %v", err)
	}
	if e.ID != "eng-new" {
		t.Errorf("ID = %q, want eng-new", e.ID)
	}
	if e.Phase != types.PhaseValidate || e.WeekInProgram != 3 {
		t.Errorf("unexpected phase/week: %q/%d", e.Phase, e.WeekInProgram)
	}
	if len(e.Goals) != 1 || e.Goals[0].Category != "leadership" {
		t.Errorf("goals not decoded: %+v", e.Goals)
	}
}

func TestGetActiveEngagement_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetActiveEngagement(context.Background(), "nobody", coachPolicy)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetEngagement_ClientPolicyNeverSelectsObservations(t *testing.T) {
	s := newTestStore(t)
	seedEngagement(t, s, "eng-1", "client-1", "active", time.Now())

	coach, err := s.GetEngagement(context.Background(), "eng-1", coachPolicy)
	if err != nil {
		t.Fatalf("GetEngagement(coach): %v", err)
	}
	if coach.CoachObservations != "Deflects with humour" {
		t.Errorf("coach CoachObservations = %q", coach.CoachObservations)
	}

	client, err := s.GetEngagement(context.Background(), "eng-1", clientPolicy)
	if err != nil {
		t.Fatalf("GetEngagement(client): %v", err)
	}
	if client.CoachObservations != "" {
		t.Errorf("client policy leaked CoachObservations: %q", client.CoachObservations)
	}
}

func TestListMarkers_ExcludesInactiveAndRespectsLimit(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	seedEngagement(t, s, "eng-1", "client-1", "active", now)
	for i := 0; i < 4; i++ {
		mustExec(t, s, `
			INSERT INTO markers (id, engagement_id, direction, label, baseline_score, current_score, target_score, active, created_at)
			VALUES (?, 'eng-1', 'more', ?, 2, 4, 8, 1, ?)
		`, fmt.Sprintf("m-%d", i), fmt.Sprintf("marker %d", i), ts(now.Add(time.Duration(i)*time.Minute)))
	}
	mustExec(t, s, `
		INSERT INTO markers (id, engagement_id, direction, label, active, created_at)
		VALUES ('m-off', 'eng-1', 'less', 'retired', 0, ?)
	`, ts(now.Add(time.Hour)))

	markers, err := s.ListMarkers(context.Background(), "eng-1", 3)
	if err != nil {
		t.Fatalf("ListMarkers: %v", err)
	}
	if len(markers) != 3 {
		t.Fatalf("expected 3 markers, got %d", len(markers))
	}
	if markers[0].ID != "m-3" {
		t.Errorf("expected newest first, got %q", markers[0].ID)
	}
	for _, m := range markers {
		if m.ID == "m-off" {
			t.Error("inactive marker returned")
		}
		if !m.Active {
			t.Errorf("marker %s not active", m.ID)
		}
	}
}

func TestListSnapshots_RestrictedToWindow(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	mustExec(t, s, `INSERT INTO snapshots (id, client_id, zones, confidence_score, alignment_score, created_at)
		VALUES ('in', 'client-1', '[{"dimension":"energy","zone":"green"}]', 37, 41, ?)`, ts(now.Add(-2*24*time.Hour)))
	mustExec(t, s, `INSERT INTO snapshots (id, client_id, created_at) VALUES ('old', 'client-1', ?)`, ts(now.Add(-30*24*time.Hour)))
	mustExec(t, s, `INSERT INTO snapshots (id, client_id, created_at) VALUES ('other', 'client-2', ?)`, ts(now.Add(-time.Hour)))

	snaps, err := s.ListSnapshots(context.Background(), "client-1", testWindow(now), 3)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snaps) != 1 || snaps[0].ID != "in" {
		t.Fatalf("expected only 'in', got %+v", snaps)
	}
	if snaps[0].ConfidenceScore != 37 || len(snaps[0].Zones) != 1 || snaps[0].Zones[0].Zone != "green" {
		t.Errorf("snapshot not decoded: %+v", snaps[0])
	}
}

func TestListMicroEntries_WindowedByEntryDate(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	mustExec(t, s, `INSERT INTO micro_entries (id, client_id, entry_date, kind, reflection, focus_tags, created_at)
		VALUES ('a', 'client-1', '2026-10-15', 'impact', 'Spoke up first', '["voice"]', ?)`, ts(now))
	mustExec(t, s, `INSERT INTO micro_entries (id, client_id, entry_date, kind, created_at)
		VALUES ('b', 'client-1', '2026-10-10', 'validation', ?)`, ts(now))
	mustExec(t, s, `INSERT INTO micro_entries (id, client_id, entry_date, kind, created_at)
		VALUES ('c', 'client-1', '2026-10-01', 'impact', ?)`, ts(now))
	// The window starts on 2026-10-09; that day would make eight calendar days.
	mustExec(t, s, `INSERT INTO micro_entries (id, client_id, entry_date, kind, created_at)
		VALUES ('d', 'client-1', '2026-10-09', 'impact', ?)`, ts(now))

	entries, err := s.ListMicroEntries(context.Background(), "client-1", testWindow(now), 30)
	if err != nil {
		t.Fatalf("ListMicroEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "a" || entries[1].ID != "b" {
		t.Errorf("unexpected order: %s, %s", entries[0].ID, entries[1].ID)
	}
	if len(entries[0].FocusTags) != 1 || entries[0].FocusTags[0] != "voice" {
		t.Errorf("focus tags not decoded: %+v", entries[0].FocusTags)
	}
}

func TestListSessionRecords_ClientPolicyOmitsCoachColumns(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	mustExec(t, s, `
		INSERT INTO session_records (id, client_id, session_date, summary, themes, quotes, transcript, coach_insights, created_at)
		VALUES ('s1', 'client-1', '2026-10-14', 'Explored delegation', '["trust"]', '["I can let go"]',
		        'full transcript text', 'avoids conflict', ?)
	`, ts(now.Add(-time.Hour)))

	coach, err := s.ListSessionRecords(context.Background(), "client-1", testWindow(now), 5, coachPolicy)
	if err != nil {
		t.Fatalf("ListSessionRecords(coach): %v", err)
	}
	if len(coach) != 1 || coach[0].Transcript == "" || coach[0].CoachInsights == "" {
		t.Fatalf("coach policy should see transcript and insights: %+v", coach)
	}

	client, err := s.ListSessionRecords(context.Background(), "client-1", testWindow(now), 5, clientPolicy)
	if err != nil {
		t.Fatalf("ListSessionRecords(client): %v", err)
	}
	if len(client) != 1 {
		t.Fatalf("expected 1 record, got %d", len(client))
	}
	if client[0].Transcript != "" || client[0].CoachInsights != "" {
		t.Errorf("client policy leaked coach columns: %+v", client[0])
	}
	if client[0].Summary != "Explored delegation" || len(client[0].Quotes) != 1 {
		t.Errorf("shared columns missing: %+v", client[0])
	}
}

func TestListCoachNotes_RefusedForClientPolicy(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	mustExec(t, s, `INSERT INTO coach_notes (id, client_id, body, curiosity, next_step, avoid, created_at)
		VALUES ('n1', 'client-1', 'body', 'why now?', 'ask about team', 'rescuing', ?)`, ts(now.Add(-time.Hour)))

	notes, err := s.ListCoachNotes(context.Background(), "client-1", testWindow(now), 10, clientPolicy)
	if !errors.Is(err, ErrFieldNotPermitted) {
		t.Fatalf("expected ErrFieldNotPermitted, got %v", err)
	}
	if notes != nil {
		t.Errorf("expected no notes, got %+v", notes)
	}

	notes, err = s.ListCoachNotes(context.Background(), "client-1", testWindow(now), 10, coachPolicy)
	if err != nil {
		t.Fatalf("ListCoachNotes(coach): %v", err)
	}
	if len(notes) != 1 || notes[0].Curiosity != "why now?" || notes[0].Avoid != "rescuing" {
		t.Errorf("unexpected notes: %+v", notes)
	}
}

func TestListAudioMemosAndFiles(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	mustExec(t, s, `INSERT INTO audio_memos (id, client_id, title, duration_seconds, transcription, created_at)
		VALUES ('a1', 'client-1', 'Morning walk', 95, 'felt calm', ?)`, ts(now.Add(-time.Hour)))
	mustExec(t, s, `INSERT INTO uploaded_files (id, client_id, file_name, content_type, size_bytes, description, created_at)
		VALUES ('f1', 'client-1', 'values.pdf', 'application/pdf', 2048, 'values worksheet', ?)`, ts(now.Add(-time.Hour)))

	memos, err := s.ListAudioMemos(context.Background(), "client-1", testWindow(now), 5)
	if err != nil {
		t.Fatalf("ListAudioMemos: %v", err)
	}
	if len(memos) != 1 || memos[0].DurationSeconds != 95 {
		t.Errorf("unexpected memos: %+v", memos)
	}

	files, err := s.ListUploadedFiles(context.Background(), "client-1", testWindow(now), 10)
	if err != nil {
		t.Fatalf("ListUploadedFiles: %v", err)
	}
	if len(files) != 1 || files[0].SizeBytes != 2048 {
		t.Errorf("unexpected files: %+v", files)
	}
}

func sampleUpsert(headline string) UpsertReport {
	end := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	return UpsertReport{
		EngagementID: "eng-1",
		ClientID:     "client-1",
		PeriodNumber: 3,
		Phase:        types.PhaseValidate,
		ClientView: types.ClientView{
			Headline:          headline,
			Themes:            []string{"trust"},
			Wins:              []string{"delegated a project"},
			ReflectionPrompts: []string{"What felt different?"},
			Encouragement:     "Keep going",
		},
		CoachView: types.CoachView{
			Summary:              "summary " + headline,
			Patterns:             []string{"over-functioning"},
			Risks:                []string{"burnout"},
			SuggestedFocus:       []string{"boundaries"},
			NextSessionQuestions: []string{"Where did you hold back?"},
		},
		SourceSummary: types.SourceSummary{Markers: 2, MicroEntries: 3},
		WindowStart:   end.AddDate(0, 0, -7),
		WindowEnd:     end,
	}
}

func TestUpsertWeeklyReport_InsertsThenUpdatesSameRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, created, err := s.UpsertWeeklyReport(ctx, sampleUpsert("first"))
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !created {
		t.Error("first upsert should create")
	}
	if first.Status != types.ReportDraft {
		t.Errorf("status = %q, want draft", first.Status)
	}

	second, created, err := s.UpsertWeeklyReport(ctx, sampleUpsert("second"))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Error("second upsert should update, not create")
	}
	if second.ID != first.ID {
		t.Errorf("ID changed: %q -> %q", first.ID, second.ID)
	}

	count, err := s.CountReports(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one row, got %d", count)
	}

	stored, err := s.GetWeeklyReport(ctx, "eng-1", 3)
	if err != nil {
		t.Fatalf("GetWeeklyReport: %v", err)
	}
	if stored.ClientView.Headline != "second" || stored.CoachView.Summary != "summary second" {
		t.Errorf("stored content not from second call: %+v / %+v", stored.ClientView, stored.CoachView)
	}
	if stored.SourceSummary.MicroEntries != 3 {
		t.Errorf("source summary not stored: %+v", stored.SourceSummary)
	}
}

func TestUpsertWeeklyReport_ResetsPublishedToDraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, _, err := s.UpsertWeeklyReport(ctx, sampleUpsert("first")); err != nil {
		t.Fatal(err)
	}
	published, err := s.SetReportStatus(ctx, "eng-1", 3, types.ReportPublished)
	if err != nil {
		t.Fatalf("SetReportStatus: %v", err)
	}
	if published.Status != types.ReportPublished {
		t.Fatalf("status = %q, want published", published.Status)
	}

	again, _, err := s.UpsertWeeklyReport(ctx, sampleUpsert("regenerated"))
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != types.ReportDraft {
		t.Errorf("regeneration should reset status to draft, got %q", again.Status)
	}
}

func TestUpsertWeeklyReport_ConcurrentSamePeriodConverges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	creates := 0
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, created, err := s.UpsertWeeklyReport(ctx, sampleUpsert(fmt.Sprintf("writer-%d", i)))
			if err != nil {
				errs <- err
				return
			}
			if created {
				mu.Lock()
				creates++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent upsert failed: %v", err)
	}
	if creates != 1 {
		t.Errorf("%d writers reported created, want exactly 1", creates)
	}

	count, err := s.CountReports(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected exactly one row after concurrent upserts, got %d", count)
	}
}

func TestInsertWeeklyReport_ConflictKeepsFirstID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Given: a report already stored for the period
	first, _, err := s.UpsertWeeklyReport(ctx, sampleUpsert("first"))
	if err != nil {
		t.Fatal(err)
	}

	// When: a writer whose lookup missed inserts under a fresh ID
	if err := s.insertWeeklyReport(ctx, "01LOSINGWRITER000000000000", sampleUpsert("late"), `{"headline":"late"}`, `{}`, `{}`, formatTime(time.Now())); err != nil {
		t.Fatalf("insertWeeklyReport: %v", err)
	}

	// Then: the row keeps the first ID, so the late writer is not reported as a create
	stored, err := s.GetWeeklyReport(ctx, "eng-1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ID != first.ID {
		t.Errorf("ID = %q, want %q", stored.ID, first.ID)
	}
	if stored.ClientView.Headline != "late" {
		t.Errorf("headline = %q, want last write", stored.ClientView.Headline)
	}
}

func TestUpsertWeeklyReport_DifferentPeriodsAreSeparateRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := sampleUpsert("week 3")
	if _, _, err := s.UpsertWeeklyReport(ctx, in); err != nil {
		t.Fatal(err)
	}
	in.PeriodNumber = 4
	if _, _, err := s.UpsertWeeklyReport(ctx, in); err != nil {
		t.Fatal(err)
	}

	reports, err := s.ListWeeklyReports(ctx, "eng-1")
	if err != nil {
		t.Fatalf("ListWeeklyReports: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].PeriodNumber != 4 || reports[1].PeriodNumber != 3 {
		t.Errorf("expected latest period first, got %d, %d", reports[0].PeriodNumber, reports[1].PeriodNumber)
	}
}

func TestGetWeeklyReport_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetWeeklyReport(context.Background(), "eng-1", 9)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetReportStatus_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SetReportStatus(context.Background(), "eng-1", 1, types.ReportPublished)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListWeeklyReports_EmptyIsNotNil(t *testing.T) {
	s := newTestStore(t)

	reports, err := s.ListWeeklyReports(context.Background(), "eng-none")
	if err != nil {
		t.Fatal(err)
	}
	if reports == nil || len(reports) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", reports)
	}
}
