// Package render turns a fetched record set into the plain-text context document
// sent to the generation service.
//
// Output is deterministic: sections appear in a fixed order, records keep their
// input order, and nothing depends on map iteration or the clock. A section with
// no records is left out entirely.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hyperengineering/compass/internal/fetch"
	"github.com/hyperengineering/compass/internal/redaction"
	"github.com/hyperengineering/compass/internal/types"
)

// TruncationMarker ends any free-text field cut to its budget.
const TruncationMarker = "… [truncated]"

// Section titles, in render order.
const (
	SectionEngagement   = "ENGAGEMENT"
	SectionMarkers      = "MARKERS"
	SectionSnapshots    = "SNAPSHOTS"
	SectionMicroEntries = "MICRO-ENTRIES"
	SectionSessions     = "SESSIONS"
	SectionCoachNotes   = "COACH NOTES"
	SectionAudioMemos   = "AUDIO MEMOS"
	SectionFiles        = "FILES"
)

// Budgets caps long free-text fields, in characters.
type Budgets struct {
	Transcript    int
	Transcription int
}

// DefaultBudgets returns the standard truncation budgets.
func DefaultBudgets() Budgets {
	return Budgets{Transcript: 2000, Transcription: 1000}
}

// Renderer builds context documents.
type Renderer struct {
	budgets Budgets
}

// New creates a Renderer. Non-positive budgets fall back to the defaults.
func New(b Budgets) *Renderer {
	def := DefaultBudgets()
	if b.Transcript <= 0 {
		b.Transcript = def.Transcript
	}
	if b.Transcription <= 0 {
		b.Transcription = def.Transcription
	}
	return &Renderer{budgets: b}
}

// Render produces the context document for rs under policy. It accepts a nil
// record set and never fails. Coach-private fields are only written when the
// policy allows them, whatever the record set contains.
func (r *Renderer) Render(rs *fetch.RecordSet, policy redaction.FieldPolicy) string {
	if rs == nil {
		rs = &fetch.RecordSet{}
	}

	var b strings.Builder
	b.WriteString("CONTEXT DOCUMENT\n")
	b.WriteString("Audience: " + string(audienceOf(policy)) + "\n")
	if len(rs.Failed) > 0 {
		b.WriteString("Unavailable sources: " + strings.Join(rs.Failed, ", ") + "\n")
	}

	if rs.Engagement != nil {
		r.engagement(&b, rs.Engagement, policy)
	}
	if len(rs.Markers) > 0 {
		r.markers(&b, rs.Markers)
	}
	if len(rs.Snapshots) > 0 {
		r.snapshots(&b, rs.Snapshots)
	}
	if len(rs.MicroEntries) > 0 {
		r.microEntries(&b, rs.MicroEntries)
	}
	if len(rs.Sessions) > 0 {
		r.sessions(&b, rs.Sessions, policy)
	}
	if len(rs.CoachNotes) > 0 && policy.CoachNotes {
		r.coachNotes(&b, rs.CoachNotes, policy)
	}
	if len(rs.AudioMemos) > 0 {
		r.audioMemos(&b, rs.AudioMemos)
	}
	if len(rs.Files) > 0 {
		r.files(&b, rs.Files)
	}

	return b.String()
}

func audienceOf(p redaction.FieldPolicy) types.Audience {
	if p.IsClient() {
		return types.AudienceClient
	}
	return types.AudienceCoach
}

func section(b *strings.Builder, title string, count int) {
	b.WriteString("\n=== " + title)
	if count > 0 {
		b.WriteString(" (" + strconv.Itoa(count) + ")")
	}
	b.WriteString(" ===\n")
}

// field writes "label: value" when value is non-blank.
func field(b *strings.Builder, indent, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	b.WriteString(indent + label + ": " + value + "\n")
}

func (r *Renderer) engagement(b *strings.Builder, e *types.Engagement, policy redaction.FieldPolicy) {
	section(b, SectionEngagement, 0)
	field(b, "", "Phase", string(e.Phase))
	if e.WeekInProgram > 0 {
		field(b, "", "Week in program", strconv.Itoa(e.WeekInProgram))
	}
	field(b, "", "Present", e.PresentNarrative)
	field(b, "", "Past", e.PastNarrative)
	field(b, "", "Potential", e.PotentialNarrative)
	focusList(b, "Goals", e.Goals)
	focusList(b, "Challenges", e.Challenges)
	if policy.EngagementObservations {
		field(b, "", "Coach observations", e.CoachObservations)
	}
}

func focusList(b *strings.Builder, label string, items []types.FocusItem) {
	var lines []string
	for _, it := range items {
		text := strings.TrimSpace(it.Text)
		if text == "" {
			continue
		}
		if c := strings.TrimSpace(it.Category); c != "" {
			text += " [" + c + "]"
		}
		lines = append(lines, text)
	}
	if len(lines) == 0 {
		return
	}
	b.WriteString(label + ":\n")
	for _, l := range lines {
		b.WriteString("- " + l + "\n")
	}
}

func (r *Renderer) markers(b *strings.Builder, markers []types.Marker) {
	section(b, SectionMarkers, len(markers))
	for _, m := range markers {
		b.WriteString("- [" + string(m.Direction) + "] " + strings.TrimSpace(m.Label) + ": " +
			score(m.CurrentScore, types.MarkerScale) +
			" (baseline " + score(m.BaselineScore, types.MarkerScale) +
			", target " + score(m.TargetScore, types.MarkerScale) + ")\n")
	}
}

func (r *Renderer) snapshots(b *strings.Builder, snapshots []types.Snapshot) {
	section(b, SectionSnapshots, len(snapshots))
	for _, s := range snapshots {
		b.WriteString("-" + datePrefix(s.CreatedAt) + " Confidence: " + score(s.ConfidenceScore, types.SnapshotScale) +
			", Alignment: " + score(s.AlignmentScore, types.SnapshotScale) + "\n")
		var zones []string
		for _, z := range s.Zones {
			if z.Dimension == "" || z.Zone == "" {
				continue
			}
			zones = append(zones, z.Dimension+"="+z.Zone)
		}
		if len(zones) > 0 {
			b.WriteString("  Zones: " + strings.Join(zones, ", ") + "\n")
		}
	}
}

func (r *Renderer) microEntries(b *strings.Builder, entries []types.MicroEntry) {
	section(b, SectionMicroEntries, len(entries))
	for _, e := range entries {
		line := "- " + e.EntryDate + " [" + string(e.Kind) + "]"
		if text := strings.TrimSpace(e.Reflection); text != "" {
			line += " " + text
		}
		if tags := nonBlank(e.FocusTags); len(tags) > 0 {
			line += " (focus: " + strings.Join(tags, ", ") + ")"
		}
		b.WriteString(line + "\n")
	}
}

func (r *Renderer) sessions(b *strings.Builder, sessions []types.SessionRecord, policy redaction.FieldPolicy) {
	section(b, SectionSessions, len(sessions))
	for _, s := range sessions {
		b.WriteString("- " + s.SessionDate + "\n")
		field(b, "  ", "Summary", s.Summary)
		if themes := nonBlank(s.Themes); len(themes) > 0 {
			field(b, "  ", "Themes", strings.Join(themes, ", "))
		}
		for _, q := range nonBlank(s.Quotes) {
			b.WriteString("  Quote: \"" + q + "\"\n")
		}
		if policy.SessionTranscripts {
			field(b, "  ", "Transcript", truncate(s.Transcript, r.budgets.Transcript))
		}
		if policy.SessionCoachInsights {
			field(b, "  ", "Coach insights", s.CoachInsights)
		}
	}
}

func (r *Renderer) coachNotes(b *strings.Builder, notes []types.CoachNote, policy redaction.FieldPolicy) {
	section(b, SectionCoachNotes, len(notes))
	for _, n := range notes {
		line := "-" + datePrefix(n.CreatedAt)
		if body := strings.TrimSpace(n.Body); body != "" {
			line += " " + body
		}
		b.WriteString(line + "\n")
		if policy.NotePrivateFields {
			field(b, "  ", "Curiosity", n.Curiosity)
			field(b, "  ", "Next step", n.NextStep)
			field(b, "  ", "Avoid", n.Avoid)
		}
	}
}

func (r *Renderer) audioMemos(b *strings.Builder, memos []types.AudioMemo) {
	section(b, SectionAudioMemos, len(memos))
	for _, m := range memos {
		line := "-" + datePrefix(m.CreatedAt)
		if title := strings.TrimSpace(m.Title); title != "" {
			line += " " + title
		}
		if m.DurationSeconds > 0 {
			line += " (" + (time.Duration(m.DurationSeconds) * time.Second).String() + ")"
		}
		b.WriteString(line + "\n")
		field(b, "  ", "Transcription", truncate(m.Transcription, r.budgets.Transcription))
	}
}

func (r *Renderer) files(b *strings.Builder, files []types.UploadedFile) {
	section(b, SectionFiles, len(files))
	for _, f := range files {
		line := "- " + strings.TrimSpace(f.FileName)
		var meta []string
		if f.ContentType != "" {
			meta = append(meta, f.ContentType)
		}
		if f.SizeBytes > 0 {
			meta = append(meta, strconv.FormatInt(f.SizeBytes, 10)+" bytes")
		}
		if len(meta) > 0 {
			line += " (" + strings.Join(meta, ", ") + ")"
		}
		if d := strings.TrimSpace(f.Description); d != "" {
			line += ": " + d
		}
		b.WriteString(line + "\n")
	}
}

// score renders a value with its scale denominator, e.g. "3/10".
func score(v, scale int) string {
	return fmt.Sprintf("%d/%d", v, scale)
}

// datePrefix returns " YYYY-MM-DD" for a set time, or "" for the zero time.
func datePrefix(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return " " + t.UTC().Format("2006-01-02")
}

func nonBlank(items []string) []string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// truncate cuts s to at most budget characters and appends TruncationMarker
// when anything was removed.
func truncate(s string, budget int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= budget {
		return s
	}
	runes := []rune(s)
	return string(runes[:budget]) + TruncationMarker
}
