// Package resilience contains the failure-handling building blocks the
// repositories are wrapped with: the error classifier, the retry executor
// and the per-class rate limiter.
package resilience

import (
	"context"
	"errors"
	"strings"

	"github.com/defterlab/defter/internal/core/domain"
)

// storage-engine signatures. Lock and contention variants are the only
// retryable storage failures.
var storageLockPatterns = []string{
	"database is locked",
	"database table is locked",
	"sqlite_busy",
	"deadlock detected",
	"could not serialize access",
	"lock timeout",
}

var storagePatterns = []string{
	"unique constraint",
	"constraint failed",
	"foreign key constraint",
	"not null constraint",
	"check constraint",
	"duplicate key",
	"syntax error",
	"no such table",
	"no such column",
	"datatype mismatch",
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"timeout",
	"timed out",
	"temporarily unavailable",
	"too many connections",
	"eof",
	"bad connection",
}

var ioPatterns = []string{
	"no such file or directory",
	"permission denied",
	"file exists",
	"read-only file system",
	"no space left on device",
	"is a directory",
}

// Classify turns an arbitrary failure into the typed taxonomy. It is
// idempotent: an already-classified error passes through unchanged.
func Classify(err error) *domain.ClassifiedError {
	if err == nil {
		return nil
	}
	if ce, ok := domain.AsClassified(err); ok {
		return ce
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewClassified(domain.KindTransient, true, err)
	}

	s := strings.ToLower(err.Error())

	for _, p := range storageLockPatterns {
		if strings.Contains(s, p) {
			return domain.NewClassified(domain.KindStorage, true, err)
		}
	}
	for _, p := range storagePatterns {
		if strings.Contains(s, p) {
			return domain.NewClassified(domain.KindStorage, false, err)
		}
	}
	for _, p := range transientPatterns {
		if strings.Contains(s, p) {
			return domain.NewClassified(domain.KindTransient, true, err)
		}
	}
	for _, p := range ioPatterns {
		if strings.Contains(s, p) {
			return domain.NewClassified(domain.KindIO, false, err)
		}
	}

	return domain.NewClassified(domain.KindUnknown, false, err)
}
