package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// JSON-backed storage. Single file, human-readable, portable.
// Every write reloads the file and rewrites it under an exclusive lock on
// "<path>.lock", so several processes can share one file.

// lockTimeout bounds the wait for another process's write.
const lockTimeout = 5 * time.Second

type userRecord struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
}

type dataFile struct {
	Key   string                               `json:"key"`
	Users map[string]userRecord                `json:"users"`
	Docs  map[string]map[string]map[string]any `json:"docs"`
}

// stamp identifies one version of the file on disk.
type stamp struct {
	mod  int64
	size int64
}

// timeKey marks an encoded time.Time inside a document.
const timeKey = "$time"

func statFile(path string) (stamp, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stamp{}, nil
		}
		return stamp{}, fmt.Errorf("stat file: %w", err)
	}
	return stamp{mod: fi.ModTime().UnixNano(), size: fi.Size()}, nil
}

// withLock runs fn while holding the file's write lock.
func withLock(path string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	fl := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	ok, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return fmt.Errorf("lock %s: not acquired", fl.Path())
	}
	defer fl.Unlock()
	return fn()
}

func load(path string) (*dataFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &dataFile{}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	var df dataFile
	if err := json.Unmarshal(b, &df); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	for _, docs := range df.Docs {
		for id, fields := range docs {
			docs[id] = decodeFields(fields)
		}
	}
	return &df, nil
}

// save replaces the file through a temp file and rename. Callers hold the lock.
func save(path string, df *dataFile) error {
	out := dataFile{Key: df.Key, Users: df.Users, Docs: make(map[string]map[string]map[string]any, len(df.Docs))}
	for coll, docs := range df.Docs {
		enc := make(map[string]map[string]any, len(docs))
		for id, fields := range docs {
			enc[id] = encodeFields(fields)
		}
		out.Docs[coll] = enc
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// reloadLocked replaces the in-memory copy with the file's contents.
func (b *Backend) reloadLocked() error {
	st, err := statFile(b.path)
	if err != nil {
		return err
	}
	df, err := load(b.path)
	if err != nil {
		return err
	}
	b.data = df
	b.init()
	b.seen = st
	return nil
}

// refreshLocked reloads the file if another process has replaced it.
func (b *Backend) refreshLocked() (bool, error) {
	if b.path == "" {
		return false, nil
	}
	st, err := statFile(b.path)
	if err != nil {
		return false, err
	}
	if st == b.seen {
		return false, nil
	}
	return true, b.reloadLocked()
}

// txLocked applies fn to the freshest copy of the data and writes it back.
// On any error the file is left as it was.
func (b *Backend) txLocked(fn func() error) error {
	if b.path == "" {
		return fn()
	}
	return withLock(b.path, func() error {
		if err := b.reloadLocked(); err != nil {
			return err
		}
		if err := fn(); err != nil {
			return err
		}
		if err := save(b.path, b.data); err != nil {
			// Drop the unsaved change.
			_ = b.reloadLocked()
			return err
		}
		st, err := statFile(b.path)
		if err == nil {
			b.seen = st
		}
		return nil
	})
}

// watch fans out writes made by other processes to open live queries.
func (b *Backend) watch(stop <-chan struct{}, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		b.mu.Lock()
		if !b.closed && len(b.subs) > 0 {
			if changed, err := b.refreshLocked(); err == nil && changed {
				b.fanOutLocked("")
			}
		}
		b.mu.Unlock()
	}
}

func encodeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if t, ok := v.(time.Time); ok {
			out[k] = map[string]any{timeKey: t.UTC().Format(time.RFC3339Nano)}
			continue
		}
		out[k] = v
	}
	return out
}

func decodeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if m, ok := v.(map[string]any); ok && len(m) == 1 {
			if s, ok := m[timeKey].(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					out[k] = t
					continue
				}
			}
		}
		out[k] = v
	}
	return out
}
