package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/defterlab/defter/internal/core/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err       error
		kind      domain.ErrorKind
		retryable bool
	}{
		{errors.New("UNIQUE constraint failed: companies.name"), domain.KindStorage, false},
		{errors.New("FOREIGN KEY constraint failed"), domain.KindStorage, false},
		{errors.New("pq: duplicate key value violates unique constraint"), domain.KindStorage, false},
		{errors.New("no such table: transactions"), domain.KindStorage, false},
		{errors.New("database is locked"), domain.KindStorage, true},
		{errors.New("SQLITE_BUSY: database is locked"), domain.KindStorage, true},
		{errors.New("pq: deadlock detected"), domain.KindStorage, true},
		{errors.New("could not serialize access due to concurrent update"), domain.KindStorage, true},
		{errors.New("dial tcp 127.0.0.1:5432: connection refused"), domain.KindTransient, true},
		{errors.New("read tcp: i/o timeout"), domain.KindTransient, true},
		{errors.New("write: broken pipe"), domain.KindTransient, true},
		{errors.New("unexpected EOF"), domain.KindTransient, true},
		{errors.New("open /data/defter.db: no such file or directory"), domain.KindIO, false},
		{errors.New("open /data/defter.db: permission denied"), domain.KindIO, false},
		{errors.New("something completely different"), domain.KindUnknown, false},
		{context.DeadlineExceeded, domain.KindTransient, true},
	}

	for _, tt := range tests {
		ce := Classify(tt.err)
		if ce.Kind != tt.kind {
			t.Errorf("Classify(%q).Kind = %v, want %v", tt.err, ce.Kind, tt.kind)
		}
		if ce.Retryable != tt.retryable {
			t.Errorf("Classify(%q).Retryable = %v, want %v", tt.err, ce.Retryable, tt.retryable)
		}
		if ce.UserMessage == "" {
			t.Errorf("Classify(%q) has empty user message", tt.err)
		}
	}
}

func TestClassify_Idempotent(t *testing.T) {
	ce := domain.NewClassified(domain.KindRateLimitExceeded, true, errors.New("write budget exhausted"))

	got := Classify(ce)
	if got != ce {
		t.Errorf("Classify on classified error returned a new value: %v", got)
	}

	// Also through a wrap layer
	wrapped := Classify(errWrap{ce})
	if wrapped != ce {
		t.Errorf("Classify on wrapped classified error returned a new value: %v", wrapped)
	}
}

type errWrap struct{ inner error }

func (e errWrap) Error() string { return "wrapped: " + e.inner.Error() }
func (e errWrap) Unwrap() error { return e.inner }

func TestClassify_Nil(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Errorf("Classify(nil) = %v, want nil", got)
	}
}
