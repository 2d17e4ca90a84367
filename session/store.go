package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultLockTimeout = 10 * time.Second
	DefaultStaleAfter  = 2 * time.Minute

	lockRetry = 50 * time.Millisecond
)

var (
	processLocksMu sync.Mutex
	processLocks   = map[string]*sync.Mutex{}
)

func processLock(path string) *sync.Mutex {
	processLocksMu.Lock()
	defer processLocksMu.Unlock()
	mu, ok := processLocks[path]
	if !ok {
		mu = &sync.Mutex{}
		processLocks[path] = mu
	}
	return mu
}

type lockInfo struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
}

// store serializes read-modify-write cycles on one state file.
type store struct {
	path       string
	timeout    time.Duration
	staleAfter time.Duration
	now        func() time.Time
	log        *zap.Logger
	write      func(path string, data []byte) error
}

func (st *store) lockPath() string { return st.path + ".lock" }

// withLock runs fn while holding the in-process mutex for the state path
// and the exclusive sidecar lock file.
func (st *store) withLock(fn func() error) error {
	mu := processLock(st.lockPath())
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()
	for {
		f, err := os.OpenFile(st.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			info, _ := json.Marshal(lockInfo{PID: os.Getpid(), CreatedAt: time.Now().UTC().Format(time.RFC3339)})
			_, _ = f.Write(append(info, '\n'))
			_ = f.Close()
			defer func() { _ = os.Remove(st.lockPath()) }()
			return fn()
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("acquiring session lock: %w", err)
		}
		if st.stale(st.lockPath()) {
			st.breakStale()
			continue
		}
		if time.Since(start) >= st.timeout {
			return fmt.Errorf("%w: %s held for more than %s", ErrLocked, st.lockPath(), st.timeout)
		}
		time.Sleep(lockRetry)
	}
}

// stale reports whether the lock file at path is older than staleAfter.
// The created_at recorded inside the file wins over its modification time.
func (st *store) stale(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	created := fi.ModTime()
	if data, err := os.ReadFile(path); err == nil {
		var info lockInfo
		if json.Unmarshal(data, &info) == nil {
			if t, err := time.Parse(time.RFC3339, info.CreatedAt); err == nil {
				created = t
			}
		}
	}
	return time.Since(created) > st.staleAfter
}

// breakStale moves the lock aside before deleting it, so a fresh lock
// taken by another process after the staleness check is never removed.
// If the moved file turns out to be fresh, it is linked back in place.
func (st *store) breakStale() {
	aside := fmt.Sprintf("%s.stale-%d-%d", st.lockPath(), os.Getpid(), time.Now().UnixNano())
	if err := os.Rename(st.lockPath(), aside); err != nil {
		return
	}
	defer func() { _ = os.Remove(aside) }()
	if !st.stale(aside) {
		_ = os.Link(aside, st.lockPath())
		return
	}
	st.log.Warn("removing stale session lock", zap.String("lock", st.lockPath()))
}

// revision returns the revision currently on disk, or 0 when the state
// file does not exist.
func (st *store) revision() (int, error) {
	data, err := os.ReadFile(st.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading session state: %w", err)
	}
	var head struct {
		Revision int `json:"revision"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0, fmt.Errorf("parsing session state %s: %w", st.path, err)
	}
	return head.Revision, nil
}

// update applies fn to s and writes it, all under withLock. The on-disk
// revision must still equal s.Revision; otherwise nothing is applied. When
// fn or the write fails, s is restored to its state before the call.
func (st *store) update(s *State, fn func() error) error {
	return st.withLock(func() error {
		onDisk, err := st.revision()
		if err != nil {
			return err
		}
		if onDisk != s.Revision {
			return fmt.Errorf("%w: %s is at revision %d, loaded revision %d", ErrStaleState, st.path, onDisk, s.Revision)
		}
		before, err := s.marshal()
		if err != nil {
			return err
		}
		err = fn()
		if err == nil {
			s.Revision++
			s.UpdatedAt = timestamp(st.now())
			var data []byte
			if data, err = s.marshal(); err == nil {
				err = st.write(st.path, data)
			}
		}
		if err != nil {
			if prev, derr := decodeState(before); derr == nil {
				*s = *prev
			}
			return err
		}
		return nil
	})
}

// writeAtomic replaces path with data through a temp file in the same
// directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	_ = os.Chmod(tmpPath, 0o644)
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	syncDir(dir)
	return nil
}

func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	defer f.Close()
	_ = f.Sync()
}
