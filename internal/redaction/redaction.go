// Package redaction selects which entity fields an audience may see.
//
// The resulting FieldPolicy is consumed at query time by the store, so a field
// the policy excludes is never read out of the database for that audience.
package redaction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/compass/internal/types"
)

// ErrUnknownAudience is returned by ParseAudience for values other than coach or client.
var ErrUnknownAudience = errors.New("unknown audience")

// FieldPolicy lists the coach-private data an audience is allowed to fetch.
// Everything not named here is visible to both audiences.
//
// The client tier withholds more than coach-authored content: raw session
// transcripts are also coach-only, and clients see the session summary,
// themes and quotes instead.
type FieldPolicy struct {
	Audience types.Audience

	// CoachNotes allows the coach_notes entity to be queried at all.
	CoachNotes bool
	// NotePrivateFields allows the curiosity, next-step and avoid sub-fields of a note.
	NotePrivateFields bool
	// EngagementObservations allows engagements.coach_observations.
	EngagementObservations bool
	// SessionTranscripts allows session_records.transcript.
	SessionTranscripts bool
	// SessionCoachInsights allows session_records.coach_insights.
	SessionCoachInsights bool
}

// Tier returns the field policy for an audience. Anything that is not the
// coach audience gets the client policy.
func Tier(audience types.Audience) FieldPolicy {
	if audience == types.AudienceCoach {
		return FieldPolicy{
			Audience:               types.AudienceCoach,
			CoachNotes:             true,
			NotePrivateFields:      true,
			EngagementObservations: true,
			SessionTranscripts:     true,
			SessionCoachInsights:   true,
		}
	}
	return FieldPolicy{Audience: types.AudienceClient}
}

// IsClient reports whether the policy is the restricted client tier.
func (p FieldPolicy) IsClient() bool {
	return p.Audience != types.AudienceCoach
}

// ParseAudience converts request input to an Audience. Empty input selects the coach audience.
func ParseAudience(s string) (types.Audience, error) {
	switch a := types.Audience(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return types.AudienceCoach, nil
	case types.AudienceCoach, types.AudienceClient:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAudience, s)
	}
}
