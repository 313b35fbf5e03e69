package models

import "net/http"

// SubmissionRequest is the backend POST derived from a successful outcome
type SubmissionRequest struct {
	URL    string
	Body   []byte
	Header http.Header
}

// SubmissionResult is the terminal state of a backend submission
type SubmissionResult struct {
	StatusCode int
	Body       []byte
	Attempts   int
}

// OK reports whether the backend accepted the submission.
func (r *SubmissionResult) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}
