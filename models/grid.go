package models

import (
	"time"

	"gogrid/domain/core"
	"gogrid/domain/grid"
)

// ComputeRequest is the stateless compute message: a raw grid in, a
// computed grid out
type ComputeRequest struct {
	RawData grid.RawGrid `json:"rawData" binding:"required"`
}

// ComputeResponse answers a ComputeRequest. Seq is set when the response
// belongs to a tracked grid session.
type ComputeResponse struct {
	Seq    uint64            `json:"seq,omitempty"`
	Result grid.ComputedGrid `json:"result"`
}

// StoredGrid is a persisted raw grid
type StoredGrid struct {
	Key       core.GridKey    `db:"key" json:"key"`
	Raw       grid.RawGrid    `db:"raw" json:"rawData"`
	Version   int64           `db:"version" json:"version"`
	Origin    core.InstanceID `db:"origin" json:"origin"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// GridView is what a session exposes about a grid: its raw text, the last
// accepted computed grid, and where sequencing stands
type GridView struct {
	Key         core.GridKey      `json:"key"`
	RawData     grid.RawGrid      `json:"rawData"`
	Result      grid.ComputedGrid `json:"result"`
	Seq         uint64            `json:"seq"`
	AppliedSeq  uint64            `json:"applied_seq"`
	Pending     bool              `json:"pending"`
	Version     int64             `json:"version"`
	Fingerprint core.Hash         `json:"fingerprint"`
}

// CellUpdate is the body of a single-cell edit
type CellUpdate struct {
	Value string `json:"value"`
}

// CellUpdateResult acknowledges an accepted edit. Highlight is set when the
// new text is a negative number.
type CellUpdateResult struct {
	Key       core.GridKey `json:"key"`
	Cell      string       `json:"cell"`
	Value     string       `json:"value"`
	Seq       uint64       `json:"seq"`
	Highlight bool         `json:"highlight"`
}

// GridEventType names the kinds of events streamed to grid subscribers
type GridEventType string

const (
	EventEdited   GridEventType = "edited"
	EventReplaced GridEventType = "replaced"
	EventExternal GridEventType = "external"
	EventComputed GridEventType = "computed"
)

// GridEvent is broadcast to everyone watching a grid key
type GridEvent struct {
	Key       core.GridKey           `json:"key"`
	Type      GridEventType          `json:"event_type"`
	Seq       uint64                 `json:"seq,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// GridChange announces that a grid was written, possibly by another instance
type GridChange struct {
	Key     core.GridKey    `json:"key"`
	Origin  core.InstanceID `json:"origin"`
	Version int64           `json:"version"`
}
