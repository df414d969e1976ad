package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds pagination metadata for list endpoints.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListOptions configures list queries with pagination and filtering.
type ListOptions struct {
	Limit  int
	Offset int
	Policy Policy // Optional policy filter
}

// DefaultListOptions returns sensible defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 20, Offset: 0}
}

// Clamp enforces limits (max 100, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// CreateRunRequest is the body of POST /api/v1/runs.
type CreateRunRequest struct {
	Workload           string  `json:"workload"`
	Policy             string  `json:"policy,omitempty"`
	Seed               *int64  `json:"seed,omitempty"`
	IORequestChance    int     `json:"io_request_chance,omitempty"`
	IOCompletionChance int     `json:"io_completion_chance,omitempty"`
	Timeslices         []int64 `json:"timeslices,omitempty"`
	TimesliceExpr      string  `json:"timeslice_expr,omitempty"`
}
