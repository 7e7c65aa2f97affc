package domain

import "time"

// TrashEntry references a soft-deleted record: its type, identity and a
// JSON snapshot of the row as it looked right before deletion. It exists
// from the moment of soft delete until restore or permanent purge.
type TrashEntry struct {
	ID         int64      `db:"id"          json:"id"`
	EntityType EntityType `db:"entity_type" json:"entity_type"`
	EntityID   int64      `db:"entity_id"   json:"entity_id"`
	Snapshot   []byte     `db:"snapshot"    json:"snapshot"`
	DeletedAt  time.Time  `db:"deleted_at"  json:"deleted_at"`
}

// Expired reports whether the entry is past the retention window at the
// given instant.
func (t *TrashEntry) Expired(now time.Time, retention time.Duration) bool {
	return now.Sub(t.DeletedAt) > retention
}
