package upstream

import (
	"fmt"
	"strings"
	"time"
)

// UsageReport is the aggregate payload behind the usage overview charts.
type UsageReport struct {
	Overview   UsageOverview   `json:"overview"`
	TimeSeries []UsagePoint    `json:"time_series"`
	ByUser     []BreakdownItem `json:"breakdown_by_user"`
	ByAgent    []BreakdownItem `json:"breakdown_by_agent"`
	ByModel    []BreakdownItem `json:"breakdown_by_model"`
}

type UsageOverview struct {
	Conversations int64 `json:"conversations"`
	Messages      int64 `json:"messages"`
	InputTokens   int64 `json:"input_tokens"`
	OutputTokens  int64 `json:"output_tokens"`
	CostCents     int64 `json:"cost_cents"`
}

// UsagePoint is a daily time-series datapoint.
type UsagePoint struct {
	Date          string `json:"date"`
	Conversations int64  `json:"conversations"`
	Messages      int64  `json:"messages"`
	Tokens        int64  `json:"tokens"`
	CostCents     int64  `json:"cost_cents"`
}

// BreakdownItem is one row of a per-dimension aggregate (user/agent/model).
type BreakdownItem struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Messages  int64  `json:"messages"`
	Tokens    int64  `json:"tokens"`
	CostCents int64  `json:"cost_cents"`
}

// ConversationSummary is one row of the paginated conversation browser.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	UserID       string    `json:"user_id"`
	UserLabel    string    `json:"user_label"`
	AgentID      string    `json:"agent_id"`
	Model        string    `json:"model"`
	Status       string    `json:"status"`
	MessageCount int       `json:"message_count"`
	Tokens       int64     `json:"tokens"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ConversationList struct {
	Items []ConversationSummary `json:"items"`
	Total int64                 `json:"total"`
}

// ConversationDetail is a full transcript.
type ConversationDetail struct {
	ConversationSummary
	Transcript []TranscriptMessage `json:"transcript"`
}

type TranscriptMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Tokens    int64     `json:"tokens"`
	CreatedAt time.Time `json:"created_at"`
}

// StorageReport is the storage view payload.
type StorageReport struct {
	TotalBytes int64          `json:"total_bytes"`
	Documents  int64          `json:"documents"`
	Datasets   []StorageUsage `json:"datasets"`
	ByUser     []StorageUsage `json:"breakdown_by_user"`
}

type StorageUsage struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Bytes     int64  `json:"bytes"`
	Documents int64  `json:"documents"`
}

// Option is an id/label pair used to populate filter pickers.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ReferenceLists are the unfiltered lookups behind the pickers. They are
// independent of the active filter so a selected-but-filtered-out option
// stays addressable.
type ReferenceLists struct {
	Users  []Option `json:"users"`
	Agents []Option `json:"agents"`
	Teams  []Option `json:"teams"`
}

// ObservableMember is a user who consented to team-manager visibility.
type ObservableMember struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Label returns the display name, falling back to the email address.
func (m ObservableMember) Label() string {
	if strings.TrimSpace(m.Name) != "" {
		return m.Name
	}
	return m.Email
}

// ExportResult is a generated export file.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: status %d: %s", e.Code, e.Body)
}

// IsForbidden reports whether the error is an upstream 403. Reference-data
// loaders degrade to empty lists on it instead of failing their view.
func IsForbidden(err error) bool {
	if se, ok := err.(*StatusError); ok {
		return se.Code == 403
	}
	return false
}
