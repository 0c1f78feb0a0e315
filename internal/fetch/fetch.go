// Package fetch gathers a client's history for one time window.
//
// The engagement is looked up first and is required. Every other entity is
// fetched concurrently and independently: a failing entity query is logged and
// contributes an empty slice rather than aborting the whole fetch.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hyperengineering/compass/internal/redaction"
	"github.com/hyperengineering/compass/internal/store"
	"github.com/hyperengineering/compass/internal/types"
)

// ErrMissingEngagement is returned when the client has no usable engagement.
// It wraps store.ErrNotFound.
var ErrMissingEngagement = fmt.Errorf("missing engagement: %w", store.ErrNotFound)

// Entity names recorded in RecordSet.Failed.
const (
	EntityMarkers      = "markers"
	EntitySnapshots    = "snapshots"
	EntityMicroEntries = "micro_entries"
	EntitySessions     = "sessions"
	EntityCoachNotes   = "coach_notes"
	EntityAudioMemos   = "audio_memos"
	EntityFiles        = "files"
	EntityEngagement   = "engagement"
)

// Limits caps the number of records fetched per entity type.
type Limits struct {
	Markers      int
	Snapshots    int
	MicroEntries int
	Sessions     int
	CoachNotes   int
	AudioMemos   int
	Files        int
}

// DefaultLimits returns the standard per-entity caps.
func DefaultLimits() Limits {
	return Limits{
		Markers:      10,
		Snapshots:    3,
		MicroEntries: 30,
		Sessions:     5,
		CoachNotes:   10,
		AudioMemos:   5,
		Files:        10,
	}
}

// Query selects whose history to fetch, over which window, for which audience.
type Query struct {
	ClientID     string
	EngagementID string // optional; the client's active engagement is used when empty
	Window       types.Window
	Policy       redaction.FieldPolicy
}

// RecordSet is the typed result of one fetch. Slices are most-recent-first.
type RecordSet struct {
	Engagement   *types.Engagement
	Markers      []types.Marker
	Snapshots    []types.Snapshot
	MicroEntries []types.MicroEntry
	Sessions     []types.SessionRecord
	CoachNotes   []types.CoachNote
	AudioMemos   []types.AudioMemo
	Files        []types.UploadedFile

	// Failed lists the entity names whose fetch failed, sorted.
	Failed []string
}

// Summary counts the records in the set.
func (rs *RecordSet) Summary() types.SourceSummary {
	if rs == nil {
		return types.SourceSummary{}
	}
	return types.SourceSummary{
		Markers:      len(rs.Markers),
		Snapshots:    len(rs.Snapshots),
		MicroEntries: len(rs.MicroEntries),
		Sessions:     len(rs.Sessions),
		CoachNotes:   len(rs.CoachNotes),
		AudioMemos:   len(rs.AudioMemos),
		Files:        len(rs.Files),
	}
}

// Fetcher reads client history from a RecordSource.
type Fetcher struct {
	source store.RecordSource
	limits Limits
}

// NewFetcher creates a Fetcher. Each non-positive limit falls back to its
// DefaultLimits value, so every query stays bounded.
func NewFetcher(source store.RecordSource, limits Limits) *Fetcher {
	def := DefaultLimits()
	if limits.Markers <= 0 {
		limits.Markers = def.Markers
	}
	if limits.Snapshots <= 0 {
		limits.Snapshots = def.Snapshots
	}
	if limits.MicroEntries <= 0 {
		limits.MicroEntries = def.MicroEntries
	}
	if limits.Sessions <= 0 {
		limits.Sessions = def.Sessions
	}
	if limits.CoachNotes <= 0 {
		limits.CoachNotes = def.CoachNotes
	}
	if limits.AudioMemos <= 0 {
		limits.AudioMemos = def.AudioMemos
	}
	if limits.Files <= 0 {
		limits.Files = def.Files
	}
	return &Fetcher{source: source, limits: limits}
}

// Fetch resolves the engagement and then fetches every other entity concurrently.
// A missing engagement returns ErrMissingEngagement; any other engagement lookup
// error is returned wrapped. Entity failures are recorded in RecordSet.Failed.
func (f *Fetcher) Fetch(ctx context.Context, q Query) (*RecordSet, error) {
	eng, err := f.engagement(ctx, q)
	if err != nil {
		return nil, err
	}

	rs := &RecordSet{Engagement: eng}
	f.fanOut(ctx, q, rs)
	return rs, nil
}

// FetchContext is the conversational variant of Fetch: it never fails. An
// engagement lookup failure leaves Engagement nil and the remaining entities
// are still fetched.
func (f *Fetcher) FetchContext(ctx context.Context, q Query) *RecordSet {
	rs := &RecordSet{}

	eng, err := f.engagement(ctx, q)
	if err != nil {
		if !errors.Is(err, ErrMissingEngagement) {
			logPartialFailure(ctx, q, EntityEngagement, err)
			rs.Failed = append(rs.Failed, EntityEngagement)
		}
	} else {
		rs.Engagement = eng
	}

	f.fanOut(ctx, q, rs)
	return rs
}

func (f *Fetcher) engagement(ctx context.Context, q Query) (*types.Engagement, error) {
	var (
		eng *types.Engagement
		err error
	)
	if q.EngagementID != "" {
		eng, err = f.source.GetEngagement(ctx, q.EngagementID, q.Policy)
	} else {
		eng, err = f.source.GetActiveEngagement(ctx, q.ClientID, q.Policy)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMissingEngagement
		}
		return nil, fmt.Errorf("lookup engagement: %w", err)
	}
	// An explicit engagement id must belong to the requested client.
	if q.ClientID != "" && eng.ClientID != q.ClientID {
		return nil, ErrMissingEngagement
	}
	return eng, nil
}

// fanOut runs the per-entity queries concurrently and fills rs.
// Goroutines never return an error to the group, so one failure cannot cancel
// the context the others are running under.
func (f *Fetcher) fanOut(ctx context.Context, q Query, rs *RecordSet) {
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	failed := func(entity string, err error) {
		logPartialFailure(ctx, q, entity, err)
		mu.Lock()
		rs.Failed = append(rs.Failed, entity)
		mu.Unlock()
	}

	if rs.Engagement != nil {
		engagementID := rs.Engagement.ID
		g.Go(func() error {
			markers, err := f.source.ListMarkers(gctx, engagementID, f.limits.Markers)
			if err != nil {
				failed(EntityMarkers, err)
				return nil
			}
			rs.Markers = markers
			return nil
		})
	}

	g.Go(func() error {
		snapshots, err := f.source.ListSnapshots(gctx, q.ClientID, q.Window, f.limits.Snapshots)
		if err != nil {
			failed(EntitySnapshots, err)
			return nil
		}
		rs.Snapshots = snapshots
		return nil
	})

	g.Go(func() error {
		entries, err := f.source.ListMicroEntries(gctx, q.ClientID, q.Window, f.limits.MicroEntries)
		if err != nil {
			failed(EntityMicroEntries, err)
			return nil
		}
		rs.MicroEntries = entries
		return nil
	})

	g.Go(func() error {
		sessions, err := f.source.ListSessionRecords(gctx, q.ClientID, q.Window, f.limits.Sessions, q.Policy)
		if err != nil {
			failed(EntitySessions, err)
			return nil
		}
		rs.Sessions = sessions
		return nil
	})

	// Coach notes are never queried for an audience that may not see them.
	if q.Policy.CoachNotes {
		g.Go(func() error {
			notes, err := f.source.ListCoachNotes(gctx, q.ClientID, q.Window, f.limits.CoachNotes, q.Policy)
			if err != nil {
				failed(EntityCoachNotes, err)
				return nil
			}
			rs.CoachNotes = notes
			return nil
		})
	}

	g.Go(func() error {
		memos, err := f.source.ListAudioMemos(gctx, q.ClientID, q.Window, f.limits.AudioMemos)
		if err != nil {
			failed(EntityAudioMemos, err)
			return nil
		}
		rs.AudioMemos = memos
		return nil
	})

	g.Go(func() error {
		files, err := f.source.ListUploadedFiles(gctx, q.ClientID, q.Window, f.limits.Files)
		if err != nil {
			failed(EntityFiles, err)
			return nil
		}
		rs.Files = files
		return nil
	})

	_ = g.Wait()
	sort.Strings(rs.Failed)
}

func logPartialFailure(ctx context.Context, q Query, entity string, err error) {
	slog.WarnContext(ctx, "source fetch failed",
		"component", "fetch",
		"kind", "partial_source_fetch_failure",
		"entity", entity,
		"client_id", q.ClientID,
		"audience", string(q.Policy.Audience),
		"error", err,
	)
}
