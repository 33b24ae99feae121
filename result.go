package mediator

import (
	"encoding/json"
	"fmt"
)

// Result is the outcome of executing a command or query. Buses return it
// by value and never mutate it afterwards.
type Result struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Err       error     `json:"-"`
	ErrorCode ErrorCode `json:"error_code,omitempty"`
	FromCache bool      `json:"from_cache,omitempty"`
	IsStale   bool      `json:"is_stale,omitempty"`
}

// OK builds a successful Result.
func OK(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail builds a failed Result classified with CodeOf.
func Fail(err error) Result {
	return Result{Err: err, ErrorCode: CodeOf(err)}
}

// Error returns the failure message, or "" on success.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// MarshalJSON adds the error message alongside the code.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(r), Error: r.Error()})
}

// As extracts the result data as T. Data that came back from a
// serialising cache store as raw bytes is decoded from JSON.
func As[T any](r Result) (T, error) {
	var zero T
	if !r.Success {
		return zero, fmt.Errorf("mediator: result not successful: %w", r.Err)
	}
	switch v := r.Data.(type) {
	case T:
		return v, nil
	case json.RawMessage:
		return decode[T](v)
	case []byte:
		return decode[T](v)
	case nil:
		return zero, nil
	default:
		return zero, fmt.Errorf("mediator: result data is %T, not %T", r.Data, zero)
	}
}

func decode[T any](data []byte) (T, error) {
	var t T
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("mediator: decode result data: %w", err)
	}
	return t, nil
}
