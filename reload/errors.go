package reload

import "fmt"

// ErrorKind classifies a *ReloadError along the taxonomy of recoverable
// failures a reload can report back to its caller. Internal aborts are
// not part of this taxonomy: they panic rather than return an error (see
// internalAbortf).
type ErrorKind int

const (
	LoaderErrorKind ErrorKind = iota
	ShapeErrorKind
	ReloadInProgressErrorKind
)

func (k ErrorKind) String() string {
	switch k {
	case LoaderErrorKind:
		return "loader"
	case ShapeErrorKind:
		return "shape"
	case ReloadInProgressErrorKind:
		return "reload-in-progress"
	default:
		return "unknown"
	}
}

// ReloadError is every recoverable failure a Controller can hand back: a
// loader parse/resolve failure, a shape mismatch caught by CanReload, or
// an attempt to start a reload while one is already in flight. All three
// leave the isolate running its pre-reload program unchanged.
type ReloadError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ReloadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("reload: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("reload: %s: %s", e.Kind, e.Message)
}

func (e *ReloadError) Unwrap() error { return e.Cause }

// NewLoaderError wraps a loader failure as reported by the external
// parser/resolver.
func NewLoaderError(cause error) *ReloadError {
	return &ReloadError{Kind: LoaderErrorKind, Message: "loader failed", Cause: cause}
}

// NewShapeError formats a CanReload diagnostic, e.g. "number of instance
// fields changed in Foo (2 vs 3)".
func NewShapeError(format string, args ...interface{}) *ReloadError {
	return &ReloadError{Kind: ShapeErrorKind, Message: fmt.Sprintf(format, args...)}
}

// ErrReloadInProgress reports that StartReload was called while a
// context from a previous, not-yet-finished reload still exists.
func ErrReloadInProgress() *ReloadError {
	return &ReloadError{Kind: ReloadInProgressErrorKind, Message: "a reload is already in progress"}
}

// internalAbortf panics identifying an internal-abort class of failure:
// an identity-predicate collision in a mapping table, or a become
// validation failure (self-forward, immediate forward, chain forward).
// Both indicate a bug in the reconciler, not a bad program image, so
// they are fatal and never recovered by the controller.
func internalAbortf(format string, args ...interface{}) {
	panic("reload: internal abort: " + fmt.Sprintf(format, args...))
}
