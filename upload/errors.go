package upload

import "fmt"

// StatusError is returned for non-2xx responses from the intake endpoint.
type StatusError struct {
	Code int
	// Body is a short excerpt of the response body, if any.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// PartError reports a part that could not be delivered within the retry
// policy. The upload stops at this part.
type PartError struct {
	Part     int
	Total    int
	Attempts int
	Err      error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("part %d/%d failed after %d attempts: %v", e.Part, e.Total, e.Attempts, e.Err)
}

func (e *PartError) Unwrap() error {
	return e.Err
}
