package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goliatone/go-settings/config"
)

// WatchFunc receives the document stored for a watched Ref after it changed
// on disk. A removed document is reported as an empty Document with ok
// false. Returning an error stops the watch.
type WatchFunc func(doc config.Document, meta Meta, ok bool) error

// Watch calls fn whenever the document for ref changes on disk, until ctx
// is done. Bursts of events are coalesced and changes that leave the content
// identical are skipped. fn runs on the calling goroutine, so it may edit
// dictionaries the caller owns.
func (s *FileStore) Watch(ctx context.Context, ref Ref, fn WatchFunc) error {
	if fn == nil {
		return fmt.Errorf("state: watch callback is required")
	}
	path, err := s.Path(ref)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: create directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("state: watch: %w", err)
	}
	defer watcher.Close()
	// Saves rename a temp file over the target, so the directory is watched
	// rather than the file.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("state: watch %s: %w", dir, err)
	}

	_, lastMeta, _, err := s.Load(ctx, ref)
	if err != nil {
		return err
	}
	lastETag := lastMeta.ETag

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			doc, meta, found, err := s.Load(ctx, ref)
			if err != nil {
				return err
			}
			if meta.ETag == lastETag {
				continue
			}
			lastETag = meta.ETag
			if err := fn(doc, meta, found); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("state: watch %s: %w", path, err)
		}
	}
}

// Replace swaps the local keys of file for the content of doc. It is the
// usual WatchFunc body for a User level.
func Replace(file *config.File, doc config.Document) error {
	if file == nil {
		return fmt.Errorf("state: file is required")
	}
	if err := file.ClearParts(config.PartsAll); err != nil {
		return err
	}
	return file.Apply(doc, config.PartsAll)
}
