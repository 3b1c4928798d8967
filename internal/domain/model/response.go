package model

import "encoding/json"

// Envelope is the uniform response shape every portal endpoint returns.
// Data stays raw until the caller knows the concrete record shape.
type Envelope struct {
	Status     bool            `json:"status"`
	Data       json.RawMessage `json:"data,omitempty"`
	Message    string          `json:"message"`
	URL        string          `json:"url,omitempty"`
	Page       *int            `json:"page,omitempty"`
	PerPage    *int            `json:"per_page,omitempty"`
	TotalPages *int            `json:"total_pages,omitempty"`
	TotalItems *int            `json:"total_items,omitempty"`
}

// Response is a decoded envelope carrying typed data and the pagination
// metadata the server attached to it.
type Response[T any] struct {
	Status     bool
	Data       T
	Message    string
	Page       *int
	PerPage    *int
	TotalPages *int
	TotalItems *int
}

// Failure builds a non-throwing failed response, the only way transport
// errors surface to callers.
func Failure[T any](message string) Response[T] {
	return Response[T]{Status: false, Message: message}
}
