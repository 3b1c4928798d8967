package model

import "io"

// Payload is the tagged union of create-request bodies. The caller decides
// the encoding explicitly; it is never inferred from the value's shape.
type Payload interface {
	payload()
}

// PlainPayload posts the record as JSON under a "data" field.
type PlainPayload struct {
	Data *Record
}

func (PlainPayload) payload() {}

// FilePayload posts multipart form data: the record JSON-encoded under
// "data" and the binary content under "file".
type FilePayload struct {
	Data     *Record
	Filename string
	Content  io.Reader
}

func (FilePayload) payload() {}
