package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/compass/internal/redaction"
	"github.com/hyperengineering/compass/internal/types"
)

type rowScanner interface{ Scan(...any) error }

func engagementColumns(policy redaction.FieldPolicy) string {
	return strings.Join([]string{
		"id", "client_id", "phase", "week_in_program",
		"present_narrative", "past_narrative", "potential_narrative",
		"goals", "challenges",
		projected("coach_observations", policy.EngagementObservations),
		"status", "created_at",
	}, ", ")
}

func scanEngagement(scanner rowScanner) (*types.Engagement, error) {
	var e types.Engagement
	var phase, goals, challenges, createdAt string

	err := scanner.Scan(
		&e.ID,
		&e.ClientID,
		&phase,
		&e.WeekInProgram,
		&e.PresentNarrative,
		&e.PastNarrative,
		&e.PotentialNarrative,
		&goals,
		&challenges,
		&e.CoachObservations,
		&e.Status,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	e.Phase = types.Phase(phase)
	e.CreatedAt = parseTime(createdAt)
	if err := decodeJSONColumn("goals", goals, &e.Goals); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn("challenges", challenges, &e.Challenges); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEngagement retrieves an engagement by ID with the columns the policy allows.
func (s *SQLiteStore) GetEngagement(ctx context.Context, id string, policy redaction.FieldPolicy) (*types.Engagement, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+engagementColumns(policy)+" FROM engagements WHERE id = ?", id)

	e, err := scanEngagement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan engagement: %w", err)
	}
	return e, nil
}

// GetActiveEngagement returns the most recently created active engagement of a client.
func (s *SQLiteStore) GetActiveEngagement(ctx context.Context, clientID string, policy redaction.FieldPolicy) (*types.Engagement, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+engagementColumns(policy)+`
		FROM engagements
		WHERE client_id = ? AND status = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, clientID, types.EngagementStatusActive)

	e, err := scanEngagement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan engagement: %w", err)
	}
	return e, nil
}

// ListMarkers returns the active markers of an engagement, newest first.
// Markers are current state, so no time window applies.
func (s *SQLiteStore) ListMarkers(ctx context.Context, engagementID string, limit int) ([]types.Marker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, engagement_id, direction, label, baseline_score, current_score, target_score, active, created_at
		FROM markers
		WHERE engagement_id = ? AND active = 1
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, engagementID, limit)
	if err != nil {
		return nil, fmt.Errorf("query markers: %w", err)
	}
	defer rows.Close()

	var markers []types.Marker
	for rows.Next() {
		var m types.Marker
		var direction, createdAt string
		if err := rows.Scan(&m.ID, &m.EngagementID, &direction, &m.Label,
			&m.BaselineScore, &m.CurrentScore, &m.TargetScore, &m.Active, &createdAt); err != nil {
			return nil, fmt.Errorf("scan marker: %w", err)
		}
		m.Direction = types.MarkerDirection(direction)
		m.CreatedAt = parseTime(createdAt)
		markers = append(markers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate markers: %w", err)
	}
	return markers, nil
}

// ListSnapshots returns the snapshots created inside the window, newest first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, clientID string, w types.Window, limit int) ([]types.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, zones, confidence_score, alignment_score, created_at
		FROM snapshots
		WHERE client_id = ? AND created_at BETWEEN ? AND ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, clientID, formatTime(w.Start), formatTime(w.End), limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.Snapshot
	for rows.Next() {
		var sn types.Snapshot
		var zones, createdAt string
		if err := rows.Scan(&sn.ID, &sn.ClientID, &zones, &sn.ConfidenceScore, &sn.AlignmentScore, &createdAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := decodeJSONColumn("zones", zones, &sn.Zones); err != nil {
			return nil, err
		}
		sn.CreatedAt = parseTime(createdAt)
		snapshots = append(snapshots, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snapshots, nil
}

// ListMicroEntries returns micro-entries whose entry date falls inside the window, newest first.
// Entry dates are whole days, so the start date is excluded and the end date included:
// a 7-day window covers exactly 7 calendar days.
func (s *SQLiteStore) ListMicroEntries(ctx context.Context, clientID string, w types.Window, limit int) ([]types.MicroEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, entry_date, kind, reflection, focus_tags, created_at
		FROM micro_entries
		WHERE client_id = ? AND entry_date > ? AND entry_date <= ?
		ORDER BY entry_date DESC, created_at DESC, id DESC
		LIMIT ?
	`, clientID, formatDate(w.Start), formatDate(w.End), limit)
	if err != nil {
		return nil, fmt.Errorf("query micro entries: %w", err)
	}
	defer rows.Close()

	var entries []types.MicroEntry
	for rows.Next() {
		var m types.MicroEntry
		var kind, tags, createdAt string
		if err := rows.Scan(&m.ID, &m.ClientID, &m.EntryDate, &kind, &m.Reflection, &tags, &createdAt); err != nil {
			return nil, fmt.Errorf("scan micro entry: %w", err)
		}
		if err := decodeJSONColumn("focus_tags", tags, &m.FocusTags); err != nil {
			return nil, err
		}
		m.Kind = types.MicroEntryKind(kind)
		m.CreatedAt = parseTime(createdAt)
		entries = append(entries, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate micro entries: %w", err)
	}
	return entries, nil
}

// ListSessionRecords returns session records inside the window, newest first.
// Transcript and coach insight columns are only selected when the policy allows them.
func (s *SQLiteStore) ListSessionRecords(ctx context.Context, clientID string, w types.Window, limit int, policy redaction.FieldPolicy) ([]types.SessionRecord, error) {
	columns := strings.Join([]string{
		"id", "client_id", "session_date", "summary", "themes", "quotes",
		projected("transcript", policy.SessionTranscripts),
		projected("coach_insights", policy.SessionCoachInsights),
		"created_at",
	}, ", ")

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+columns+`
		FROM session_records
		WHERE client_id = ? AND created_at BETWEEN ? AND ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, clientID, formatTime(w.Start), formatTime(w.End), limit)
	if err != nil {
		return nil, fmt.Errorf("query session records: %w", err)
	}
	defer rows.Close()

	var records []types.SessionRecord
	for rows.Next() {
		var r types.SessionRecord
		var themes, quotes, createdAt string
		if err := rows.Scan(&r.ID, &r.ClientID, &r.SessionDate, &r.Summary, &themes, &quotes,
			&r.Transcript, &r.CoachInsights, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session record: %w", err)
		}
		if err := decodeJSONColumn("themes", themes, &r.Themes); err != nil {
			return nil, err
		}
		if err := decodeJSONColumn("quotes", quotes, &r.Quotes); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdAt)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session records: %w", err)
	}
	return records, nil
}

// ListCoachNotes returns coach-private notes inside the window, newest first.
// Returns ErrFieldNotPermitted without querying when the policy excludes notes.
func (s *SQLiteStore) ListCoachNotes(ctx context.Context, clientID string, w types.Window, limit int, policy redaction.FieldPolicy) ([]types.CoachNote, error) {
	if !policy.CoachNotes {
		return nil, ErrFieldNotPermitted
	}

	columns := strings.Join([]string{
		"id", "client_id", "body",
		projected("curiosity", policy.NotePrivateFields),
		projected("next_step", policy.NotePrivateFields),
		projected("avoid", policy.NotePrivateFields),
		"created_at",
	}, ", ")

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+columns+`
		FROM coach_notes
		WHERE client_id = ? AND created_at BETWEEN ? AND ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, clientID, formatTime(w.Start), formatTime(w.End), limit)
	if err != nil {
		return nil, fmt.Errorf("query coach notes: %w", err)
	}
	defer rows.Close()

	var notes []types.CoachNote
	for rows.Next() {
		var n types.CoachNote
		var createdAt string
		if err := rows.Scan(&n.ID, &n.ClientID, &n.Body, &n.Curiosity, &n.NextStep, &n.Avoid, &createdAt); err != nil {
			return nil, fmt.Errorf("scan coach note: %w", err)
		}
		n.CreatedAt = parseTime(createdAt)
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coach notes: %w", err)
	}
	return notes, nil
}

// ListAudioMemos returns audio memos inside the window, newest first.
func (s *SQLiteStore) ListAudioMemos(ctx context.Context, clientID string, w types.Window, limit int) ([]types.AudioMemo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, title, duration_seconds, transcription, created_at
		FROM audio_memos
		WHERE client_id = ? AND created_at BETWEEN ? AND ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, clientID, formatTime(w.Start), formatTime(w.End), limit)
	if err != nil {
		return nil, fmt.Errorf("query audio memos: %w", err)
	}
	defer rows.Close()

	var memos []types.AudioMemo
	for rows.Next() {
		var m types.AudioMemo
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ClientID, &m.Title, &m.DurationSeconds, &m.Transcription, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audio memo: %w", err)
		}
		m.CreatedAt = parseTime(createdAt)
		memos = append(memos, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audio memos: %w", err)
	}
	return memos, nil
}

// ListUploadedFiles returns file metadata inside the window, newest first.
func (s *SQLiteStore) ListUploadedFiles(ctx context.Context, clientID string, w types.Window, limit int) ([]types.UploadedFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, file_name, content_type, size_bytes, description, created_at
		FROM uploaded_files
		WHERE client_id = ? AND created_at BETWEEN ? AND ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, clientID, formatTime(w.Start), formatTime(w.End), limit)
	if err != nil {
		return nil, fmt.Errorf("query uploaded files: %w", err)
	}
	defer rows.Close()

	var files []types.UploadedFile
	for rows.Next() {
		var f types.UploadedFile
		var createdAt string
		if err := rows.Scan(&f.ID, &f.ClientID, &f.FileName, &f.ContentType, &f.SizeBytes, &f.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scan uploaded file: %w", err)
		}
		f.CreatedAt = parseTime(createdAt)
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploaded files: %w", err)
	}
	return files, nil
}
