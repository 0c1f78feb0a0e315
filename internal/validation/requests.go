package validation

import (
	"fmt"

	"github.com/hyperengineering/compass/internal/types"
)

// Request limits.
const (
	MaxMessageLength = 8000
	MaxHistoryTurns  = 100
)

// ValidateChatRequest checks a chat request and returns all failures.
func ValidateChatRequest(req types.ChatRequest) []ValidationError {
	var c Collector

	c.Add(ValidateUUID("client_id", req.ClientID))

	if err := ValidateRequired("message", req.Message); err != nil {
		c.Add(err)
	} else {
		validateText(&c, "message", req.Message, MaxMessageLength)
	}

	if req.Audience != "" {
		c.Add(ValidateEnum("audience", req.Audience, []string{string(types.AudienceCoach), string(types.AudienceClient)}))
	}

	if len(req.ConversationHistory) > MaxHistoryTurns {
		c.Add(&ValidationError{
			Field:   "conversation_history",
			Message: fmt.Sprintf("exceeds maximum of %d turns", MaxHistoryTurns),
		})
	}
	for i, turn := range req.ConversationHistory {
		prefix := fmt.Sprintf("conversation_history[%d]", i)
		c.Add(ValidateEnum(prefix+".role", string(turn.Role), []string{string(types.RoleUser), string(types.RoleAssistant)}))
		validateText(&c, prefix+".content", turn.Content, MaxMessageLength)
	}

	return c.Errors()
}

// ValidateReportRequest checks a report generation request and returns all failures.
func ValidateReportRequest(req types.ReportRequest) []ValidationError {
	var c Collector

	c.Add(ValidateUUID("client_id", req.ClientID))
	if req.EngagementID != "" {
		c.Add(ValidateUUID("engagement_id", req.EngagementID))
	}
	if req.WindowStart != nil && req.WindowEnd != nil && !req.WindowStart.Before(*req.WindowEnd) {
		c.Add(&ValidationError{
			Field:   "window_start",
			Message: "must be before window_end",
		})
	}

	return c.Errors()
}
