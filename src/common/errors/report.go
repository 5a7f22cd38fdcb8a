package errors

// Report is the machine-readable form of a failure printed by the CLI
type Report struct {
	// Error contains the error code (domain.code format)
	Error string `json:"error"`

	// Message contains a human-readable error message
	Message string `json:"message"`

	// Details contains optional additional error details
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToReport converts an Error to a report structure
func (e *Error) ToReport() Report {
	r := Report{
		Error:   string(e.Domain) + "." + string(e.Code),
		Message: e.Message,
	}
	if e.cause != nil {
		r.Details = map[string]interface{}{"cause": e.cause.Error()}
	}
	return r
}

// NewReport creates a report from any error.
// If the error chain holds an *Error, its domain and code are used.
// Otherwise a generic internal error report carrying the error text is returned.
func NewReport(err error) Report {
	var e *Error
	if As(err, &e) {
		r := e.ToReport()
		if r.Details == nil {
			r.Details = map[string]interface{}{}
		}
		r.Details["error"] = err.Error()
		return r
	}

	return Report{
		Error:   string(DomainInternal) + "." + string(CodeInternal),
		Message: err.Error(),
	}
}
