package ov

import "fmt"

// Status is a raw return code from an OpenVINO C API call.
// Values mirror ov_status_e; zero means success.
type Status int32

const (
	StatusOK                  Status = 0
	StatusGeneralError        Status = -1
	StatusNotImplemented      Status = -2
	StatusNetworkNotLoaded    Status = -3
	StatusParameterMismatch   Status = -4
	StatusNotFound            Status = -5
	StatusOutOfBounds         Status = -6
	StatusUnexpected          Status = -7
	StatusRequestBusy         Status = -8
	StatusResultNotReady      Status = -9
	StatusNotAllocated        Status = -10
	StatusInferNotStarted     Status = -11
	StatusNetworkNotRead      Status = -12
	StatusInferCancelled      Status = -13
	StatusInvalidCParam       Status = -14
	StatusUnknownCError       Status = -15
	StatusNotImplementCMethod Status = -16
	StatusUnknownException    Status = -17
)

var statusNames = map[Status]string{
	StatusOK:                  "ok",
	StatusGeneralError:        "general error",
	StatusNotImplemented:      "not implemented",
	StatusNetworkNotLoaded:    "network not loaded",
	StatusParameterMismatch:   "parameter mismatch",
	StatusNotFound:            "not found",
	StatusOutOfBounds:         "out of bounds",
	StatusUnexpected:          "unexpected",
	StatusRequestBusy:         "request busy",
	StatusResultNotReady:      "result not ready",
	StatusNotAllocated:        "not allocated",
	StatusInferNotStarted:     "infer not started",
	StatusNetworkNotRead:      "network not read",
	StatusInferCancelled:      "infer cancelled",
	StatusInvalidCParam:       "invalid C parameter",
	StatusUnknownCError:       "unknown C error",
	StatusNotImplementCMethod: "C method not implemented",
	StatusUnknownException:    "unknown exception",
}

// String returns a human-readable name for the status code.
// Codes outside the known table render as "undefined(<code>)".
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("undefined(%d)", int32(s))
}

// Undefined reports whether the status code is outside the set of codes
// published by the OpenVINO C API. Newer runtimes may return codes this
// package does not know about; they are carried verbatim rather than dropped.
func (s Status) Undefined() bool {
	_, ok := statusNames[s]
	return !ok
}

// Error is the typed error produced by every failing native call.
type Error struct {
	Status Status
	// Op names the wrapper operation that failed, for example "Core.ReadModel".
	Op string
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("openvino: %s: %s", e.Op, e.Status)
	}
	return fmt.Sprintf("openvino: %s", e.Status)
}

// Is matches errors with the same status code, so call sites can write
// errors.Is(err, &ov.Error{Status: ov.StatusNotImplemented}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Status == t.Status
}

// translateStatus converts a raw status code into an error.
// It is total over all int32 values and never panics: zero is success,
// everything else - known or not - becomes an *Error carrying the code.
func translateStatus(code Status, op string) error {
	if code == StatusOK {
		return nil
	}
	return &Error{Status: code, Op: op}
}
