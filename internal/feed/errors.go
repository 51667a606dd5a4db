package feed // import "openpodcast.dev/forwarder/internal/feed"

import "strconv"

// ErrorKind classifies failures of [Resolve]. Every kind is terminal,
// retrying can't succeed.
type ErrorKind int

const (
	ErrInvalidPrefix ErrorKind = iota + 1
	ErrInvalidAudioFormat
	ErrMissingReference
	ErrMalformedReference
)

var _ error = ErrorKind(0)

func (self ErrorKind) String() string {
	switch self {
	case ErrInvalidPrefix:
		return "invalid prefix"
	case ErrInvalidAudioFormat:
		return "invalid audio format"
	case ErrMissingReference:
		return "missing reference"
	case ErrMalformedReference:
		return "malformed reference"
	}
	return "ErrorKind(" + strconv.Itoa(int(self)) + ")"
}

// Error makes kinds usable as targets of errors.Is.
func (self ErrorKind) Error() string { return "feed: " + self.String() }

// Label returns the kind as a metric label value.
func (self ErrorKind) Label() string {
	switch self {
	case ErrInvalidPrefix:
		return "invalid_prefix"
	case ErrInvalidAudioFormat:
		return "invalid_audio_format"
	case ErrMissingReference:
		return "missing_reference"
	case ErrMalformedReference:
		return "malformed_reference"
	}
	return "unknown"
}

type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

var _ error = (*Error)(nil)

func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (self *Error) Error() string {
	if self.Err != nil {
		return self.Msg + ": " + self.Err.Error()
	}
	return self.Msg
}

func (self *Error) Unwrap() error { return self.Err }

func (self *Error) Is(target error) bool {
	kind, ok := target.(ErrorKind)
	return ok && kind == self.Kind
}
