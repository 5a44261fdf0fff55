package watcher

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// EventKind is the logical change reported for a file.
type EventKind int

const (
	Created EventKind = iota + 1
	Modified
	Deleted
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// FileEvent says that a file needs reindexing or removal.
type FileEvent struct {
	Path string    `json:"path"`
	Kind EventKind `json:"kind"`
}

// merge combines a pending kind with a newer raw kind for the same path.
func merge(old, newer EventKind) EventKind {
	switch {
	case old == Created && newer == Deleted:
		return Deleted
	case old == Created && newer == Modified:
		return Created
	case old == Deleted && newer == Created:
		return Modified
	default:
		return newer
	}
}

// kindFromOp maps an fsnotify operation to an event kind. Chmod-only
// events carry no content change and map to false.
func kindFromOp(op fsnotify.Op) (EventKind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return Created, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return Deleted, true
	case op.Has(fsnotify.Write):
		return Modified, true
	default:
		return 0, false
	}
}
