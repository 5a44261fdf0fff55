package watcher

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Source delivers raw filesystem notifications for a set of directories.
type Source interface {
	Add(dir string) error
	Remove(dir string) error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
	Close() error
}

// FSNotifySource is a Source backed by the operating system through fsnotify.
type FSNotifySource struct {
	w *fsnotify.Watcher
}

// NewFSNotifySource opens an OS notification handle.
func NewFSNotifySource() (*FSNotifySource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &FSNotifySource{w: w}, nil
}

func (s *FSNotifySource) Add(dir string) error          { return s.w.Add(dir) }
func (s *FSNotifySource) Remove(dir string) error       { return s.w.Remove(dir) }
func (s *FSNotifySource) Events() <-chan fsnotify.Event { return s.w.Events }
func (s *FSNotifySource) Errors() <-chan error          { return s.w.Errors }
func (s *FSNotifySource) Close() error                  { return s.w.Close() }
