// Package snapshot ships compressed, consistent copies of the SQLite event
// store to object storage and restores them.
package snapshot

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/statusline/statusline/internal/errors"
	"github.com/statusline/statusline/internal/storage"
)

const (
	// Prefix is the object path prefix every snapshot is written under.
	Prefix = "snapshots/"
	// Suffix marks a snappy-framed SQLite database.
	Suffix = ".sqlite.sz"

	// Fixed-width nanoseconds keep lexical order equal to creation order,
	// even for snapshots taken within the same second.
	timeLayout = "20060102T150405.000000000Z"
)

// Source produces a consistent copy of a database at destPath.
// eventstore.SQLiteStore implements it with VACUUM INTO.
type Source interface {
	Snapshot(ctx context.Context, destPath string) error
}

// Info describes one uploaded snapshot.
type Info struct {
	ObjectPath string    `json:"object_path"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// Snapshotter takes and restores snapshots.
type Snapshotter struct {
	source  Source
	storage storage.ObjectStorage
	workDir string
	retain  int
	now     func() time.Time
}

// NewSnapshotter creates a Snapshotter. retain is how many snapshots to keep
// after each Take; zero keeps all of them.
func NewSnapshotter(source Source, store storage.ObjectStorage, workDir string, retain int) *Snapshotter {
	return &Snapshotter{
		source:  source,
		storage: store,
		workDir: workDir,
		retain:  retain,
		now:     time.Now,
	}
}

// Take copies the database, compresses it and uploads it.
func (s *Snapshotter) Take(ctx context.Context) (*Info, error) {
	if s.source == nil {
		return nil, errors.NewSnapshotError(errors.CodeUnexpected, "event store does not support snapshots", nil)
	}

	dir, err := os.MkdirTemp(s.workDir, "snapshot-")
	if err != nil {
		return nil, errors.NewSnapshotError(errors.CodeUnexpected, "failed to create work directory", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.Printf("snapshot: cleanup warning: %v", rmErr)
		}
	}()

	dbPath := filepath.Join(dir, "events.sqlite")
	if err := s.source.Snapshot(ctx, dbPath); err != nil {
		return nil, errors.NewSnapshotError(errors.CodeReadFailed, "failed to copy database", err)
	}

	compressedPath := dbPath + ".sz"
	size, err := compressFile(dbPath, compressedPath)
	if err != nil {
		return nil, errors.NewSnapshotError(errors.CodeUnexpected, "failed to compress snapshot", err)
	}

	created := s.now().UTC()
	objectPath := ObjectName(created, uuid.NewString())
	if err := s.storage.Upload(ctx, compressedPath, objectPath); err != nil {
		return nil, errors.NewSnapshotError(errors.CodeUploadFailed, "failed to upload snapshot", err)
	}

	log.Printf("snapshot: uploaded %s (%d bytes)", objectPath, size)

	if s.retain > 0 {
		if err := s.prune(ctx); err != nil {
			log.Printf("snapshot: retention warning: %v", err)
		}
	}

	return &Info{ObjectPath: objectPath, SizeBytes: size, CreatedAt: created}, nil
}

// Restore downloads objectPath and writes the decompressed database to destPath.
func (s *Snapshotter) Restore(ctx context.Context, objectPath, destPath string) error {
	dir, err := os.MkdirTemp(s.workDir, "restore-")
	if err != nil {
		return errors.NewSnapshotError(errors.CodeUnexpected, "failed to create work directory", err)
	}
	defer os.RemoveAll(dir)

	compressedPath := filepath.Join(dir, path.Base(objectPath))
	if err := s.storage.Download(ctx, objectPath, compressedPath); err != nil {
		if stderrors.Is(err, storage.ErrObjectNotFound) {
			return errors.NewSnapshotError(errors.CodeObjectNotFound, fmt.Sprintf("snapshot %s not found", objectPath), err)
		}
		return errors.NewSnapshotError(errors.CodeDownloadFailed, "failed to download snapshot", err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return errors.NewSnapshotError(errors.CodeUnexpected, "failed to create destination directory", err)
	}
	if err := decompressFile(compressedPath, destPath); err != nil {
		return errors.NewSnapshotError(errors.CodeUnexpected, "failed to decompress snapshot", err)
	}

	log.Printf("snapshot: restored %s to %s", objectPath, destPath)
	return nil
}

// List returns snapshot object paths, oldest first.
func (s *Snapshotter) List(ctx context.Context) ([]string, error) {
	objects, err := s.storage.ListObjects(ctx, Prefix)
	if err != nil {
		return nil, errors.NewSnapshotError(errors.CodeDownloadFailed, "failed to list snapshots", err)
	}

	snapshots := make([]string, 0, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(obj, Suffix) {
			snapshots = append(snapshots, obj)
		}
	}
	// Names start with a UTC timestamp, so lexical order is creation order.
	sort.Strings(snapshots)
	return snapshots, nil
}

// prune deletes all but the newest retain snapshots.
func (s *Snapshotter) prune(ctx context.Context) error {
	snapshots, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(snapshots) <= s.retain {
		return nil
	}
	for _, obj := range snapshots[:len(snapshots)-s.retain] {
		if err := s.storage.Delete(ctx, obj); err != nil {
			return fmt.Errorf("failed to delete %s: %w", obj, err)
		}
		log.Printf("snapshot: deleted expired %s", obj)
	}
	return nil
}

// ObjectName builds the object path for a snapshot created at t.
func ObjectName(t time.Time, id string) string {
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return Prefix + t.UTC().Format(timeLayout) + "-" + short + Suffix
}

// compressFile writes src to dst in the snappy framing format and returns
// the compressed size.
func compressFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	w := snappy.NewBufferedWriter(out)
	if _, err := io.Copy(w, in); err != nil {
		out.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		out.Close()
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, err
	}

	stat, err := os.Stat(dst)
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

func decompressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, snappy.NewReader(in)); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
