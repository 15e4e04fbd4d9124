package engine

import "time"

// Blob is the content stored under a path. Data is shared between readers
// and must be treated as read-only.
type Blob struct {
	Path     string
	Data     []byte
	Modified time.Time
}

// Size returns the length of the blob content in bytes.
func (b Blob) Size() int64 {
	return int64(len(b.Data))
}

// DriverStats describes what a driver currently holds.
type DriverStats struct {
	Blobs int   `json:"blobs"`
	Bytes int64 `json:"bytes"`
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Blobs   int   `json:"blobs"`
	Bytes   int64 `json:"bytes"`
	Waiters int64 `json:"waiters"`
}

// Outcome classifies how a long-poll read was resolved.
type Outcome int

const (
	OutcomeHit Outcome = iota
	OutcomeWoken
	OutcomeTimedOut
	OutcomeCancelled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeWoken:
		return "woken"
	case OutcomeTimedOut:
		return "timeout"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "error"
	}
}
