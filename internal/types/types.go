package types

import (
	"time"
)

// Audience is the viewer role that controls which fields may be fetched and rendered.
type Audience string

const (
	AudienceCoach  Audience = "coach"
	AudienceClient Audience = "client"
)

// Valid reports whether a is a known audience.
func (a Audience) Valid() bool {
	return a == AudienceCoach || a == AudienceClient
}

// Phase is the enumerated stage of an engagement.
type Phase string

const (
	PhaseDiscover  Phase = "discover"
	PhaseValidate  Phase = "validate"
	PhaseIntegrate Phase = "integrate"
	PhaseSustain   Phase = "sustain"
)

// EngagementStatusActive marks the engagement used for context building.
const EngagementStatusActive = "active"

// FocusItem is one goal or challenge with its category tag.
type FocusItem struct {
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
}

// Engagement is an ongoing coaching relationship for one client.
type Engagement struct {
	ID                 string      `json:"id"`
	ClientID           string      `json:"client_id"`
	Phase              Phase       `json:"phase"`
	WeekInProgram      int         `json:"week_in_program"`
	PresentNarrative   string      `json:"present_narrative,omitempty"`
	PastNarrative      string      `json:"past_narrative,omitempty"`
	PotentialNarrative string      `json:"potential_narrative,omitempty"`
	Goals              []FocusItem `json:"goals,omitempty"`
	Challenges         []FocusItem `json:"challenges,omitempty"`
	Status             string      `json:"status"`

	// CoachObservations is coach-authored and only fetched for the coach audience.
	CoachObservations string `json:"coach_observations,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// MarkerDirection says whether a marker tracks doing more or less of something.
type MarkerDirection string

const (
	DirectionMore MarkerDirection = "more"
	DirectionLess MarkerDirection = "less"
)

// MarkerScale is the upper bound of marker scores.
const MarkerScale = 10

// Marker is a tracked behavioural target. Markers are soft-deactivated, never deleted.
type Marker struct {
	ID            string          `json:"id"`
	EngagementID  string          `json:"engagement_id"`
	Direction     MarkerDirection `json:"direction"`
	Label         string          `json:"label"`
	BaselineScore int             `json:"baseline_score"`
	CurrentScore  int             `json:"current_score"`
	TargetScore   int             `json:"target_score"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SnapshotScale is the upper bound of the two composite snapshot scores.
const SnapshotScale = 50

// ZoneReading is one categorical zone classification within a snapshot.
type ZoneReading struct {
	Dimension string `json:"dimension"`
	Zone      string `json:"zone"`
}

// Snapshot is an immutable point-in-time self-assessment.
type Snapshot struct {
	ID              string        `json:"id"`
	ClientID        string        `json:"client_id"`
	Zones           []ZoneReading `json:"zones,omitempty"`
	ConfidenceScore int           `json:"confidence_score"`
	AlignmentScore  int           `json:"alignment_score"`
	CreatedAt       time.Time     `json:"created_at"`
}

// MicroEntryKind distinguishes daily impact and validation records.
type MicroEntryKind string

const (
	MicroEntryImpact     MicroEntryKind = "impact"
	MicroEntryValidation MicroEntryKind = "validation"
)

// MicroEntry is a short dated reflection.
type MicroEntry struct {
	ID         string         `json:"id"`
	ClientID   string         `json:"client_id"`
	EntryDate  string         `json:"entry_date"` // YYYY-MM-DD
	Kind       MicroEntryKind `json:"kind"`
	Reflection string         `json:"reflection,omitempty"`
	FocusTags  []string       `json:"focus_tags,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// SessionRecord summarises one coaching conversation.
type SessionRecord struct {
	ID            string    `json:"id"`
	ClientID      string    `json:"client_id"`
	SessionDate   string    `json:"session_date"`
	Summary       string    `json:"summary,omitempty"`
	Themes        []string  `json:"themes,omitempty"`
	Quotes        []string  `json:"quotes,omitempty"`
	Transcript    string    `json:"transcript,omitempty"`     // coach audience only
	CoachInsights string    `json:"coach_insights,omitempty"` // coach audience only
	CreatedAt     time.Time `json:"created_at"`
}

// CoachNote is a coach-private annotation. Never fetched for the client audience.
type CoachNote struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Body      string    `json:"body,omitempty"`
	Curiosity string    `json:"curiosity,omitempty"`
	NextStep  string    `json:"next_step,omitempty"`
	Avoid     string    `json:"avoid,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AudioMemo is a recorded memo with an optional transcription.
type AudioMemo struct {
	ID              string    `json:"id"`
	ClientID        string    `json:"client_id"`
	Title           string    `json:"title,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	Transcription   string    `json:"transcription,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// UploadedFile is the metadata of a client file.
type UploadedFile struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// --- Generated artifacts ---

// ClientView is the client-facing half of a weekly narrative.
type ClientView struct {
	Headline          string   `json:"headline"`
	Themes            []string `json:"themes"`
	Wins              []string `json:"wins"`
	ReflectionPrompts []string `json:"reflection_prompts"`
	Encouragement     string   `json:"encouragement"`
}

// CoachView is the coach-facing half of a weekly narrative.
type CoachView struct {
	Summary              string   `json:"summary"`
	Patterns             []string `json:"patterns"`
	Risks                []string `json:"risks"`
	SuggestedFocus       []string `json:"suggested_focus"`
	NextSessionQuestions []string `json:"next_session_questions"`
}

// SourceSummary counts the records that fed one generation.
type SourceSummary struct {
	Markers      int `json:"markers"`
	Snapshots    int `json:"snapshots"`
	MicroEntries int `json:"micro_entries"`
	Sessions     int `json:"sessions"`
	CoachNotes   int `json:"coach_notes"`
	AudioMemos   int `json:"audio_memos"`
	Files        int `json:"files"`
}

// ReportStatus is the lifecycle state of a weekly report.
type ReportStatus string

const (
	ReportDraft     ReportStatus = "draft"
	ReportPublished ReportStatus = "published"
)

// WeeklyReport is the stored pair of generated views for one engagement period.
// Exactly one exists per (EngagementID, PeriodNumber).
type WeeklyReport struct {
	ID            string        `json:"id"`
	EngagementID  string        `json:"engagement_id"`
	ClientID      string        `json:"client_id"`
	PeriodNumber  int           `json:"period_number"`
	Phase         Phase         `json:"phase"`
	ClientView    ClientView    `json:"client_view"`
	CoachView     CoachView     `json:"coach_view"`
	SourceSummary SourceSummary `json:"source_summary"`
	WindowStart   time.Time     `json:"window_start"`
	WindowEnd     time.Time     `json:"window_end"`
	Status        ReportStatus  `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// --- Conversation ---

// ChatRole identifies the author of a conversation turn.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatTurn is one prior message in a conversation supplied by the caller.
type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// --- HTTP request/response shapes ---

// ChatRequest is the inbound body of POST /api/v1/chat.
type ChatRequest struct {
	ClientID            string     `json:"client_id"`
	Message             string     `json:"message"`
	ConversationHistory []ChatTurn `json:"conversation_history"`
	Audience            string     `json:"audience,omitempty"`
}

// ChatResponse is the reply to a chat request.
type ChatResponse struct {
	ReplyText string `json:"reply_text"`
}

// ReportRequest is the inbound body of POST /api/v1/reports.
type ReportRequest struct {
	ClientID     string     `json:"client_id"`
	EngagementID string     `json:"engagement_id,omitempty"`
	WindowStart  *time.Time `json:"window_start,omitempty"`
	WindowEnd    *time.Time `json:"window_end,omitempty"`
}

// Window is a closed time range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ReportResponse is the reply to a report generation request.
type ReportResponse struct {
	ReportID      string        `json:"report_id"`
	Created       bool          `json:"created"`
	ClientView    ClientView    `json:"client_view"`
	CoachView     CoachView     `json:"coach_view"`
	PeriodNumber  int           `json:"period_number"`
	Window        Window        `json:"window"`
	SourceSummary SourceSummary `json:"source_summary"`
}

// ReportListResponse lists the stored reports of one engagement.
type ReportListResponse struct {
	Reports []WeeklyReport `json:"reports"`
	Total   int            `json:"total"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	GenerationModel string `json:"generation_model"`
	ReportCount     int64  `json:"report_count"`
}
