package entities

import "time"

// ProgressEventType discriminates progress stream events
type ProgressEventType string

const (
	ProgressEventProgress ProgressEventType = "progress"
	ProgressEventComplete ProgressEventType = "complete"
	ProgressEventError    ProgressEventType = "error"
)

// ProgressEvent is one frame of an improvement progress stream
type ProgressEvent struct {
	Type     ProgressEventType `json:"type"`
	JobID    string            `json:"job_id,omitempty"`
	Step     string            `json:"step,omitempty"`
	Progress *int              `json:"progress,omitempty"`
	Message  string            `json:"message,omitempty"`
	Data     interface{}       `json:"data,omitempty"`
	Error    string            `json:"error,omitempty"`
	SentAt   time.Time         `json:"sent_at"`
}

// IsTerminal reports whether no event may follow this one
func (e *ProgressEvent) IsTerminal() bool {
	return e.Type == ProgressEventComplete || e.Type == ProgressEventError
}

// ContentSnapshot describes one side of a before/after comparison
type ContentSnapshot struct {
	Content   string `json:"content"`
	Score     int    `json:"score"`
	WordCount int    `json:"word_count"`
}

// ImprovementDelta summarises how much an improvement changed
type ImprovementDelta struct {
	ScoreIncrease     int `json:"scoreIncrease"`
	WordCountIncrease int `json:"wordCountIncrease"`
}

// ImprovementComparison is the payload of the terminal complete event
type ImprovementComparison struct {
	JobID       string           `json:"job_id"`
	ContentType ContentType      `json:"content_type"`
	ContentID   string           `json:"content_id"`
	Field       string           `json:"field"`
	Original    ContentSnapshot  `json:"original"`
	Improved    ContentSnapshot  `json:"improved"`
	Improvement ImprovementDelta `json:"improvement"`
	Analysis    *QualityAnalysis `json:"analysis,omitempty"`
	Changes     []string         `json:"changes,omitempty"`
}
