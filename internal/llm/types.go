package llm

// Assignment types the extraction prompt asks the model to choose from.
// "info" is reserved for synthetic rows the server inserts itself (placeholder
// and "no assignments found" records); the model is not asked to produce it.
const (
	TypeAssignment = "assignment"
	TypeQuiz       = "quiz"
	TypeExam       = "exam"
	TypePaper      = "paper"
	TypeProject    = "project"
	TypeInfo       = "info"
)

// AssignmentRecord is a single deliverable extracted from a syllabus.
// Dates are YYYY-MM-DD strings. StartDate is only meaningful for papers and
// projects (the date work should begin, as opposed to the due date).
// Field values come from the model as-is: the normalizer does not validate
// date formats or enum membership (see Normalize).
type AssignmentRecord struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
}

// ExtractionResult is the sole return shape of the pipeline. Items is always
// non-nil, even when empty — every failure path degrades to an empty list
// rather than a different shape.
type ExtractionResult struct {
	Items []AssignmentRecord `json:"items"`
}

// EmptyResult returns the canonical degraded outcome.
func EmptyResult() ExtractionResult {
	return ExtractionResult{Items: []AssignmentRecord{}}
}
