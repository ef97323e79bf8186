// Package fingerprint detects when the agent image must be rebuilt: it digests every
// input that defines the image environment and compares the digest with the one
// persisted by the previous launch.
package fingerprint

import (
	"crypto/md5" //nolint:gosec // MD5 is acceptable for non-cryptographic file change detection
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Inputs, relative to the project root.
const (
	SettingsFile = ".env"
	ConfigDir    = "configs"
	StateFile    = ".last_build_hash"
)

// Compute digests root/.env followed by every regular file under root/configs in sorted
// path order. Absent inputs contribute nothing.
func Compute(root string) (string, error) {
	hash := md5.New() //nolint:gosec // change detection only

	if err := hashFile(hash, filepath.Join(root, SettingsFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	files, err := configFiles(filepath.Join(root, ConfigDir))
	if err != nil {
		return "", err
	}
	for _, path := range files {
		if err := hashFile(hash, path); err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// configFiles lists regular files under dir, including symlinks to regular files, sorted by path.
func configFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		switch {
		case d.Type().IsRegular():
			files = append(files, path)
		case d.Type()&fs.ModeSymlink != 0:
			// Symlinks count by their target; dangling links and links to directories do not.
			if target, statErr := os.Stat(path); statErr == nil && target.Mode().IsRegular() {
				files = append(files, path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	sort.Strings(files)
	return files, nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// NeedsRebuild reports whether the image must be rebuilt.
func NeedsRebuild(current, persisted string, hasPersisted, force bool) bool {
	return force || !hasPersisted || persisted != current
}

// Store persists the fingerprint of the last rebuild decision.
type Store interface {
	Load() (string, bool, error)
	Save(fingerprint string) error
}

// FileStore keeps the fingerprint as a single hex line in a text file.
type FileStore struct {
	Path string
}

// NewFileStore returns the store at root/.last_build_hash.
func NewFileStore(root string) *FileStore {
	return &FileStore{Path: filepath.Join(root, StateFile)}
}

// Load returns the persisted fingerprint; ok is false when none was ever written.
func (s *FileStore) Load() (string, bool, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read fingerprint: %w", err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

// Save overwrites the persisted fingerprint.
func (s *FileStore) Save(fingerprint string) error {
	if err := os.WriteFile(s.Path, []byte(fingerprint), 0644); err != nil {
		return fmt.Errorf("failed to write fingerprint: %w", err)
	}
	return nil
}

// Decision is the outcome of comparing the current fingerprint with the stored one.
type Decision struct {
	Current   string
	Persisted string
	Rebuild   bool
	Forced    bool
	FirstRun  bool
}

// Decide loads the stored fingerprint and decides whether to rebuild. When persist is
// true and a rebuild is decided, current is saved before returning, i.e. before any
// build is attempted.
func Decide(store Store, current string, force, persist bool) (Decision, error) {
	persisted, ok, err := store.Load()
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Current:   current,
		Persisted: persisted,
		Forced:    force,
		FirstRun:  !ok,
		Rebuild:   NeedsRebuild(current, persisted, ok, force),
	}
	if d.Rebuild && persist {
		if err := store.Save(current); err != nil {
			return d, err
		}
	}
	return d, nil
}
