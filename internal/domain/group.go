package domain

import "errors"

var (
	ErrGroupNotFound     = errors.New("group not found")
	ErrGroupNameConflict = errors.New("group with this name already exists")
)

// Group is a named set of hosts. Its member set is resolved to a
// deduplicated host id set at run dispatch time (ad-hoc) or frozen at
// save time.
type Group struct {
	ID   string
	Name string
}
