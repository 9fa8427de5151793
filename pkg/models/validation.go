package models

// ValidationErrorType classifies structural validation findings.
type ValidationErrorType string

const (
	ValidationErrorSyntax        ValidationErrorType = "syntax"
	ValidationErrorLogic         ValidationErrorType = "logic"
	ValidationErrorConnection    ValidationErrorType = "connection"
	ValidationErrorConfiguration ValidationErrorType = "configuration"
	ValidationErrorSecurity      ValidationErrorType = "security"
)

// ValidationSeverity ranks a validation error.
type ValidationSeverity string

const (
	SeverityLow      ValidationSeverity = "low"
	SeverityMedium   ValidationSeverity = "medium"
	SeverityHigh     ValidationSeverity = "high"
	SeverityCritical ValidationSeverity = "critical"
)

// ValidationError is a structural defect. Validation findings are returned,
// never thrown: the caller decides whether to act on them.
type ValidationError struct {
	Type     ValidationErrorType `json:"type"`
	Severity ValidationSeverity  `json:"severity"`
	Message  string              `json:"message"`
	NodeID   string              `json:"node_id,omitempty"`
	Field    string              `json:"field,omitempty"`
}

// ValidationWarning is advisory only.
type ValidationWarning struct {
	Message string `json:"message"`
	NodeID  string `json:"node_id,omitempty"`
}

// ValidationSuggestion proposes an improvement, advisory only.
type ValidationSuggestion struct {
	Message string `json:"message"`
	NodeID  string `json:"node_id,omitempty"`
}

// ValidationResult is the outcome of validating a workflow graph.
type ValidationResult struct {
	IsValid     bool                   `json:"is_valid"`
	Errors      []ValidationError      `json:"errors"`
	Warnings    []ValidationWarning    `json:"warnings"`
	Suggestions []ValidationSuggestion `json:"suggestions"`
}

// AddError records a high-severity error and marks the result invalid.
func (r *ValidationResult) AddError(errType ValidationErrorType, message, nodeID, field string) {
	r.IsValid = false
	r.Errors = append(r.Errors, ValidationError{
		Type:     errType,
		Severity: SeverityHigh,
		Message:  message,
		NodeID:   nodeID,
		Field:    field,
	})
}

// ErrorMessages flattens the error list for logs and API payloads.
func (r *ValidationResult) ErrorMessages() []string {
	messages := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		messages = append(messages, e.Message)
	}

	return messages
}
