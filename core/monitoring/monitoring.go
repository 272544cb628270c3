package monitoring

import (
	"errors"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

// Tagged is implemented by errors carrying their own reporting tags.
type Tagged interface {
	Tags() map[string]string
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init sets the global monitor implementation.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if current != nil {
		current.CaptureException(err, tags)
	}
}

// CaptureError records err with the tags found in its chain. Explicit extra
// tags win over the ones carried by the error.
func CaptureError(err error, extra map[string]string) {
	if err == nil {
		return
	}
	CaptureException(err, ErrorTags(err, extra))
}

// ErrorTags merges the tags of the first Tagged error in the chain with extra.
func ErrorTags(err error, extra map[string]string) map[string]string {
	tags := make(map[string]string)
	var t Tagged
	if errors.As(err, &t) {
		for k, v := range t.Tags() {
			tags[k] = v
		}
	}
	for k, v := range extra {
		tags[k] = v
	}
	return tags
}

// Recover captures panics in goroutines.
func Recover() {
	if current != nil {
		current.Recover()
	}
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	if current != nil {
		current.Flush(d)
	}
}
