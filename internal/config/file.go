package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/slaimbot/goslaim/internal/logging"
)

// AtomicWrite writes data to path via a temp file and rename so readers
// never observe a partial file.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".goslaim-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// AtomicWriteJSON marshals v with indentation and writes it atomically.
func AtomicWriteJSON(path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return AtomicWrite(path, data, perm)
}

// BackupAndWriteJSON rotates a timestamped .bak of the current file before
// writing the new content atomically. Used by state files where a corrupt
// write would lose admin or model-selection state.
func BackupAndWriteJSON(path string, v any, perm os.FileMode, keepBackups int) error {
	if _, err := os.Stat(path); err == nil {
		bak := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		if err := copyFile(path, bak); err != nil {
			logging.L_warn("config: backup failed for %s: %v", path, err)
		} else if err := RotateBackups(path, keepBackups); err != nil {
			logging.L_warn("config: backup rotation failed for %s: %v", path, err)
		}
	}
	return AtomicWriteJSON(path, v, perm)
}

// RotateBackups removes old .bak files for path, keeping the newest keep.
func RotateBackups(path string, keep int) error {
	if keep < 1 {
		keep = 1
	}
	backups, err := ListBackups(path)
	if err != nil {
		return err
	}
	for i := keep; i < len(backups); i++ {
		if err := os.Remove(backups[i]); err != nil {
			logging.L_warn("config: remove old backup %s: %v", backups[i], err)
		}
	}
	return nil
}

// ListBackups returns the .bak files for path, newest first.
func ListBackups(path string) ([]string, error) {
	matches, err := filepath.Glob(path + ".*.bak")
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches, nil
}

// RestoreBackup replaces path with its newest backup.
func RestoreBackup(path string) error {
	backups, err := ListBackups(path)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups for %s", path)
	}
	newest := backups[0]
	if err := copyFile(newest, path); err != nil {
		return fmt.Errorf("restore %s from %s: %w", path, newest, err)
	}
	logging.L_info("config: restored %s from %s", path, strings.TrimPrefix(newest, filepath.Dir(newest)+string(os.PathSeparator)))
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
