package watcher

import (
	"errors"

	"github.com/fsnotify/fsnotify"
)

// ErrWatchBackend wraps runtime failures reported by the notification
// backend. The watcher does not recover from them.
var ErrWatchBackend = errors.New("watch backend failure")

// Kind classifies a filesystem change.
type Kind int

const (
	KindOther Kind = iota
	KindCreate
	KindModify
	KindRemove
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindModify:
		return "modify"
	case KindRemove:
		return "remove"
	default:
		return "other"
	}
}

// ChangeEvent is one filesystem notification after translation from the
// backend representation.
type ChangeEvent struct {
	Kind  Kind
	Paths []string
}

// Path returns the first affected path, or "" if there is none.
func (e ChangeEvent) Path() string {
	if len(e.Paths) == 0 {
		return ""
	}
	return e.Paths[0]
}

// FromFsnotify translates a backend event. Write wins over other bits, so a
// combined Create|Write is treated as a modification.
func FromFsnotify(ev fsnotify.Event) ChangeEvent {
	kind := KindOther
	switch {
	case ev.Has(fsnotify.Write):
		kind = KindModify
	case ev.Has(fsnotify.Create):
		kind = KindCreate
	case ev.Has(fsnotify.Remove):
		kind = KindRemove
	}
	return ChangeEvent{Kind: kind, Paths: []string{ev.Name}}
}
