package model

// Severity classifies user-facing notices.
type Severity string

const (
	SeverityDanger  Severity = "danger"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
)

// Notice is the payload handed to the dialog surface when a request fails.
type Notice struct {
	Title    string
	Body     string
	Severity Severity
}
