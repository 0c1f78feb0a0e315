package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/compass/internal/types"
	"github.com/oklog/ulid/v2"
)

const reportColumns = `id, engagement_id, client_id, period_number, phase, client_view, coach_view,
	source_summary, window_start, window_end, status, created_at, updated_at`

// scanWeeklyReport scans a row into a WeeklyReport, decoding the JSON view columns.
func scanWeeklyReport(scanner rowScanner) (*types.WeeklyReport, error) {
	var r types.WeeklyReport
	var phase, clientView, coachView, summary, status string
	var windowStart, windowEnd, createdAt, updatedAt string

	err := scanner.Scan(
		&r.ID,
		&r.EngagementID,
		&r.ClientID,
		&r.PeriodNumber,
		&phase,
		&clientView,
		&coachView,
		&summary,
		&windowStart,
		&windowEnd,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeJSONColumn("client_view", clientView, &r.ClientView); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn("coach_view", coachView, &r.CoachView); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn("source_summary", summary, &r.SourceSummary); err != nil {
		return nil, err
	}

	r.Phase = types.Phase(phase)
	r.Status = types.ReportStatus(status)
	r.WindowStart = parseTime(windowStart)
	r.WindowEnd = parseTime(windowEnd)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

// GetWeeklyReport retrieves the report of one engagement period.
func (s *SQLiteStore) GetWeeklyReport(ctx context.Context, engagementID string, period int) (*types.WeeklyReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+reportColumns+`
		FROM weekly_reports
		WHERE engagement_id = ? AND period_number = ?
	`, engagementID, period)

	r, err := scanWeeklyReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan weekly report: %w", err)
	}
	return r, nil
}

// ListWeeklyReports returns every report of an engagement, latest period first.
func (s *SQLiteStore) ListWeeklyReports(ctx context.Context, engagementID string) ([]types.WeeklyReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM weekly_reports
		WHERE engagement_id = ?
		ORDER BY period_number DESC
	`, engagementID)
	if err != nil {
		return nil, fmt.Errorf("query weekly reports: %w", err)
	}
	defer rows.Close()

	reports := []types.WeeklyReport{}
	for rows.Next() {
		r, err := scanWeeklyReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan weekly report: %w", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weekly reports: %w", err)
	}
	return reports, nil
}

// UpsertWeeklyReport creates or replaces the report for (EngagementID, PeriodNumber).
//
// The existing row is looked up by its natural key first. When found it is updated
// in place and reset to draft; otherwise a new row is inserted. The insert carries
// an ON CONFLICT clause so a concurrent regeneration that lost the lookup race still
// converges on a single row holding the last write. The bool result reports whether
// this call's insert produced the stored row; a writer that lost the race reports
// an update.
func (s *SQLiteStore) UpsertWeeklyReport(ctx context.Context, in UpsertReport) (*types.WeeklyReport, bool, error) {
	clientView, err := json.Marshal(in.ClientView)
	if err != nil {
		return nil, false, fmt.Errorf("marshal client view: %w", err)
	}
	coachView, err := json.Marshal(in.CoachView)
	if err != nil {
		return nil, false, fmt.Errorf("marshal coach view: %w", err)
	}
	summary, err := json.Marshal(in.SourceSummary)
	if err != nil {
		return nil, false, fmt.Errorf("marshal source summary: %w", err)
	}

	now := formatTime(time.Now())

	var newID string
	existing, err := s.GetWeeklyReport(ctx, in.EngagementID, in.PeriodNumber)
	switch {
	case err == nil:
		_, err = s.db.ExecContext(ctx, `
			UPDATE weekly_reports
			SET client_id = ?, phase = ?, client_view = ?, coach_view = ?, source_summary = ?,
			    window_start = ?, window_end = ?, status = ?, updated_at = ?
			WHERE id = ?
		`, in.ClientID, string(in.Phase), string(clientView), string(coachView), string(summary),
			formatTime(in.WindowStart), formatTime(in.WindowEnd), string(types.ReportDraft), now,
			existing.ID)
		if err != nil {
			return nil, false, fmt.Errorf("update weekly report: %w", err)
		}

	case errors.Is(err, ErrNotFound):
		newID = ulid.Make().String()
		if err := s.insertWeeklyReport(ctx, newID, in, string(clientView), string(coachView), string(summary), now); err != nil {
			return nil, false, err
		}

	default:
		return nil, false, fmt.Errorf("lookup weekly report: %w", err)
	}

	stored, err := s.GetWeeklyReport(ctx, in.EngagementID, in.PeriodNumber)
	if err != nil {
		return nil, false, fmt.Errorf("reload weekly report: %w", err)
	}
	return stored, newID != "" && stored.ID == newID, nil
}

// insertWeeklyReport inserts a row under id. On a natural-key conflict the existing
// row keeps its ID and takes the new content.
func (s *SQLiteStore) insertWeeklyReport(ctx context.Context, id string, in UpsertReport, clientView, coachView, summary, now string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weekly_reports (`+reportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(engagement_id, period_number) DO UPDATE SET
			client_id = excluded.client_id,
			phase = excluded.phase,
			client_view = excluded.client_view,
			coach_view = excluded.coach_view,
			source_summary = excluded.source_summary,
			window_start = excluded.window_start,
			window_end = excluded.window_end,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, id, in.EngagementID, in.ClientID, in.PeriodNumber, string(in.Phase),
		clientView, coachView, summary,
		formatTime(in.WindowStart), formatTime(in.WindowEnd), string(types.ReportDraft), now, now)
	if err != nil {
		return fmt.Errorf("insert weekly report: %w", err)
	}
	return nil
}

// SetReportStatus changes the lifecycle status of one report.
func (s *SQLiteStore) SetReportStatus(ctx context.Context, engagementID string, period int, status types.ReportStatus) (*types.WeeklyReport, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE weekly_reports
		SET status = ?, updated_at = ?
		WHERE engagement_id = ? AND period_number = ?
	`, string(status), formatTime(time.Now()), engagementID, period)
	if err != nil {
		return nil, fmt.Errorf("update report status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.GetWeeklyReport(ctx, engagementID, period)
}
