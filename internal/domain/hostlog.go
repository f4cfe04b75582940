package domain

import (
	"errors"
	"time"
)

var ErrHostLogNotFound = errors.New("host log not found")

type HostLogStatus string

const (
	HostLogStatusRunning           HostLogStatus = "running"
	HostLogStatusSuccess           HostLogStatus = "success"
	HostLogStatusError             HostLogStatus = "error"
	HostLogStatusConnectionFailed  HostLogStatus = "connection_failed"
)

// OwnerKind distinguishes which parent a HostLog belongs to — AdHocJob or
// ScheduledJob. Both flavours share this one shape; OwnerKind plus
// OwnerID is the polymorphic owner reference the table indexes on.
type OwnerKind string

const (
	OwnerKindAdHoc     OwnerKind = "adhoc"
	OwnerKindScheduled OwnerKind = "scheduled"
)

// HostLog is the terminal record of one script invocation on one host. A
// row is created in status Running and updated exactly once on
// completion.
type HostLog struct {
	ID        string
	OwnerKind OwnerKind
	OwnerID   string
	Hostname  string
	Stdout    string
	Stderr    string
	Status    HostLogStatus
	CreatedAt time.Time
}
