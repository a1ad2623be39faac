package events

import "time"

// ProcedureStart is emitted when a procedure field starts resolving.
type ProcedureStart struct {
	Name string
}

// ProcedureFinish is emitted after a procedure resolves, including when input
// validation rejected the call before the handler ran.
type ProcedureFinish struct {
	Name     string
	Err      error
	Duration time.Duration
}
