/*package report holds the run reporter and the error kinds used by the
numerical core. A Reporter carries the logger and the thread-safe warning
counter of one run; it is constructed at the top level and handed down
through the pipeline, so tests build their own instead of sharing ambient
state. Warnings never stop the run; errors carry a Kind so that only the
orchestrator has to decide what is fatal.*/
package report

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Kind classifies the failures the pipeline can hit.
type Kind int

const (
	ConfigError Kind = iota
	InputError
	DomainError
	NumericalError
	ResourceError
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "config error"
	case InputError:
		return "input error"
	case DomainError:
		return "domain error"
	case NumericalError:
		return "numerical error"
	case ResourceError:
		return "resource error"
	}
	panic("Impossible")
}

// Error is a classified pipeline error.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Errorf creates an Error of the given kind.
func Errorf(kind Kind, format string, args ...interface{}) error {
	return &Error{kind, fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err and whether err is a classified Error.
func KindOf(err error) (Kind, bool) {
	if e, ok := err.(*Error); ok {
		return e.Kind, true
	}
	return 0, false
}

// Reporter logs progress and counts warnings for one run.
type Reporter struct {
	log      *zap.SugaredLogger
	warnings int64
}

// New creates a Reporter logging to stderr.
func New() *Reporter {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return &Reporter{log: l.Sugar()}
}

// NewNop creates a silent Reporter. The warning counter still works; tests
// use it to check diagnostics without log noise.
func NewNop() *Reporter {
	return &Reporter{log: zap.NewNop().Sugar()}
}

// Infof logs a progress message.
func (r *Reporter) Infof(format string, args ...interface{}) {
	r.log.Infof(format, args...)
}

// Warnf logs a warning and increments the warning counter.
func (r *Reporter) Warnf(format string, args ...interface{}) {
	atomic.AddInt64(&r.warnings, 1)
	r.log.Warnf(format, args...)
}

// Warnings returns the number of warnings emitted so far.
func (r *Reporter) Warnings() int64 { return atomic.LoadInt64(&r.warnings) }
