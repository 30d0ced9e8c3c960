package checkpoint

import (
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// OpenMode selects how fileSet.open treats missing backing files and
// whether it takes an exclusive lock.
type OpenMode int

const (
	// CheckOnly requires every file to already exist, opens read-only,
	// and takes no lock.
	CheckOnly OpenMode = iota
	// OpenExisting requires every file to already exist, opens
	// read-write, and takes an exclusive advisory lock.
	OpenExisting
	// CreateIfMissing creates absent files as read-write and locks
	// them; existing files behave as OpenExisting.
	CreateIfMissing
)

// fileHandle tracks one backing file: its path, open descriptor (nil
// when lazily closed) and locally-known block count.
type fileHandle struct {
	path       string
	file       *os.File
	locked     bool
	blockCount uint64
}

// fileSet owns the S backing files of a CheckpointFile: their naming,
// opening, locking, flushing and closing. It holds no allocation state;
// that lives in the allocator/valid trackers layered on top.
type fileSet struct {
	opts    *Options
	mapper  blockMapper
	monitor Monitor
	files   []*fileHandle
}

func newFileSet(opts *Options, mapper blockMapper, monitor Monitor) *fileSet {
	n := opts.splitCountOrOne()
	fs := &fileSet{
		opts:    opts,
		mapper:  mapper,
		monitor: monitor,
		files:   make([]*fileHandle, n),
	}
	for i := uint32(0); i < n; i++ {
		dir := opts.dirFor(i)
		name := opts.fileNameFor(i)
		path := name
		if dir != "" {
			path = filepath.Join(dir, name)
		}
		fs.files[i] = &fileHandle{path: path}
	}
	return fs
}

// open brings every backing file into existence (or attaches to an
// existing one) per mode, and returns whether the store is freshly
// empty (every file absent / zero blocks).
func (fs *fileSet) open(mode OpenMode) (freshEmpty bool, err error) {
	if fs.opts.splitMode() {
		for i := uint32(0); i < fs.opts.SplitCount; i++ {
			dir := fs.opts.dirFor(i)
			if err := requireDirectory(dir); err != nil {
				return false, err
			}
		}
	}

	var totalBlocks uint64
	for i, fh := range fs.files {
		blocks, err := fs.openOne(fh, mode)
		if err != nil {
			fs.closePartial(i)
			return false, err
		}
		fh.blockCount = blocks
		totalBlocks += blocks
	}
	return totalBlocks == 0, nil
}

func (fs *fileSet) openOne(fh *fileHandle, mode OpenMode) (uint64, error) {
	info, statErr := os.Stat(fh.path)
	exists := statErr == nil

	switch mode {
	case CheckOnly:
		if !exists {
			return 0, &NotFoundError{FileName: fh.path}
		}
		f, err := os.OpenFile(fh.path, os.O_RDONLY, 0)
		if err != nil {
			return 0, &IOError{Op: "open", FileName: fh.path, PgID: fs.opts.PgID, Err: err}
		}
		fh.file = f
		return blocksForSize(info.Size(), fs.opts.blockSize()), nil

	case OpenExisting:
		if !exists {
			return 0, &NotFoundError{FileName: fh.path}
		}
		f, err := os.OpenFile(fh.path, os.O_RDWR, 0)
		if err != nil {
			return 0, &IOError{Op: "open", FileName: fh.path, PgID: fs.opts.PgID, Err: err}
		}
		if err := lockFile(f); err != nil {
			f.Close()
			return 0, &IOError{Op: "lock", FileName: fh.path, PgID: fs.opts.PgID, Err: err}
		}
		fh.file = f
		fh.locked = true
		return blocksForSize(info.Size(), fs.opts.blockSize()), nil

	case CreateIfMissing:
		if exists {
			f, err := os.OpenFile(fh.path, os.O_RDWR, 0)
			if err != nil {
				return 0, &IOError{Op: "open", FileName: fh.path, PgID: fs.opts.PgID, Err: err}
			}
			if err := lockFile(f); err != nil {
				f.Close()
				return 0, &IOError{Op: "lock", FileName: fh.path, PgID: fs.opts.PgID, Err: err}
			}
			fh.file = f
			fh.locked = true
			return blocksForSize(info.Size(), fs.opts.blockSize()), nil
		}
		f, err := os.OpenFile(fh.path, os.O_RDWR|os.O_CREATE, permissionBits)
		if err != nil {
			return 0, &IOError{Op: "create", FileName: fh.path, PgID: fs.opts.PgID, Err: err}
		}
		if err := lockFile(f); err != nil {
			f.Close()
			return 0, &IOError{Op: "lock", FileName: fh.path, PgID: fs.opts.PgID, Err: err}
		}
		fh.file = f
		fh.locked = true
		return 0, nil
	}
	return 0, &ConfigError{Reason: "unknown open mode"}
}

// closePartial releases files [0, n) after a construction failure, so a
// caller retrying open() is never left holding stray locks.
func (fs *fileSet) closePartial(n int) {
	for i := 0; i < n; i++ {
		fs.closeOne(fs.files[i])
	}
}

func (fs *fileSet) closeOne(fh *fileHandle) {
	if fh.file == nil {
		return
	}
	if fh.locked {
		unix.Flock(int(fh.file.Fd()), unix.LOCK_UN)
		fh.locked = false
	}
	fh.file.Close()
	fh.file = nil
}

// close releases every lock and closes every open file. Idempotent.
func (fs *fileSet) close() {
	for _, fh := range fs.files {
		fs.closeOne(fh)
	}
}

// flush issues a durability sync on every open file and reports each
// sync to the monitor, which applies its own long-I/O threshold; a sync
// failure does not stop the remaining
// files from being flushed.
func (fs *fileSet) flush(pgID uint32) error {
	var firstErr error
	for _, fh := range fs.files {
		if fh.file == nil {
			continue
		}
		start := time.Now()
		err := fh.file.Sync()
		fs.monitor.Report(Event{
			Kind:     EventFlush,
			FileName: fh.path,
			PgID:     pgID,
			Duration: time.Since(start),
		})
		if err != nil && firstErr == nil {
			firstErr = &IOError{Op: "flush", FileName: fh.path, PgID: pgID, Err: err}
		}
	}
	return firstErr
}

// advise forwards a POSIX_FADV_* hint to every open file's kernel cache
// state. It is a no-op on platforms without fadvise.
func (fs *fileSet) advise(hint int) {
	for _, fh := range fs.files {
		if fh.file == nil {
			continue
		}
		unix.Fadvise(int(fh.file.Fd()), 0, 0, hint)
	}
}

// truncate unconditionally recreates every backing file empty and
// re-takes locks.
func (fs *fileSet) truncate() error {
	for _, fh := range fs.files {
		fs.closeOne(fh)
		f, err := os.OpenFile(fh.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, permissionBits)
		if err != nil {
			return &IOError{Op: "truncate", FileName: fh.path, PgID: fs.opts.PgID, Err: err}
		}
		if err := lockFile(f); err != nil {
			f.Close()
			return &IOError{Op: "lock", FileName: fh.path, PgID: fs.opts.PgID, Err: err}
		}
		fh.file = f
		fh.locked = true
		fh.blockCount = 0
	}
	return nil
}

// ensureOpenForWrite lazily reopens a closed file with create-if-missing
// semantics, per the "lazy reopen in I/O paths" design note.
func (fs *fileSet) ensureOpenForWrite(idx uint32) (*os.File, error) {
	fh := fs.files[idx]
	if fh.file != nil {
		return fh.file, nil
	}
	f, err := os.OpenFile(fh.path, os.O_RDWR|os.O_CREATE, permissionBits)
	if err != nil {
		return nil, &IOError{Op: "open", FileName: fh.path, PgID: fs.opts.PgID, Err: err}
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, &IOError{Op: "lock", FileName: fh.path, PgID: fs.opts.PgID, Err: err}
	}
	fh.file = f
	fh.locked = true
	return f, nil
}

// openForRead returns the file for reads, or (nil, nil) if it is
// genuinely absent on disk (the "no data" signal for reads).
func (fs *fileSet) openForRead(idx uint32) (*os.File, error) {
	fh := fs.files[idx]
	if fh.file != nil {
		return fh.file, nil
	}
	if _, err := os.Stat(fh.path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &IOError{Op: "stat", FileName: fh.path, PgID: fs.opts.PgID, Err: err}
	}
	f, err := os.OpenFile(fh.path, os.O_RDWR, 0)
	if err != nil {
		return nil, &IOError{Op: "open", FileName: fh.path, PgID: fs.opts.PgID, Err: err}
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, &IOError{Op: "lock", FileName: fh.path, PgID: fs.opts.PgID, Err: err}
	}
	fh.file = f
	fh.locked = true
	return f, nil
}

func lockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func requireDirectory(dir string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return &InvalidDirectoryError{Dir: dir, Reason: "directory not found"}
	}
	if !info.IsDir() {
		return &InvalidDirectoryError{Dir: dir, Reason: "not a directory"}
	}
	return nil
}

func blocksForSize(size int64, blockSize uint64) uint64 {
	if size <= 0 {
		return 0
	}
	return (uint64(size) + blockSize - 1) / blockSize
}
