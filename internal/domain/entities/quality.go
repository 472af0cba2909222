package entities

// IssueSeverity ranks quality findings
type IssueSeverity string

const (
	SeverityInfo     IssueSeverity = "info"
	SeverityWarning  IssueSeverity = "warning"
	SeverityCritical IssueSeverity = "critical"
)

// QualityIssue is one finding of the quality analyzer
type QualityIssue struct {
	Code     string        `json:"code"`
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// QualityAnalysis is the score/issue report stored on a job
type QualityAnalysis struct {
	Kind              string         `json:"kind"`
	Score             int            `json:"score"`
	Grade             string         `json:"grade"`
	WordCount         int            `json:"word_count"`
	SentenceCount     int            `json:"sentence_count"`
	ParagraphCount    int            `json:"paragraph_count"`
	AvgSentenceLength float64        `json:"avg_sentence_length"`
	Issues            []QualityIssue `json:"issues"`
	Suggestions       []string       `json:"suggestions"`
}

// QualityAnalysisKind discriminates QualityAnalysis payloads
const QualityAnalysisKind = "quality_analysis"

// ScoreComparison holds the before/after quality score of an improvement
type ScoreComparison struct {
	Before int `json:"before"`
	After  int `json:"after"`
}

// Increase returns After - Before
func (s ScoreComparison) Increase() int {
	return s.After - s.Before
}

// ImprovementResult is what the provider produced for a job
type ImprovementResult struct {
	Kind         string          `json:"kind"`
	ImprovedText string          `json:"improved_text"`
	Changes      []string        `json:"changes"`
	Score        ScoreComparison `json:"score"`
	Provider     string          `json:"provider"`
	Model        string          `json:"model,omitempty"`
}

// ImprovementResultKind discriminates ImprovementResult payloads
const ImprovementResultKind = "improvement_result"

// ImproveRequest is the input handed to a content improver
type ImproveRequest struct {
	ContentType ContentType
	Field       string
	Title       string
	Text        string
	Analysis    *QualityAnalysis
	// Language of the content; defaults to Turkish
	Language string
}
