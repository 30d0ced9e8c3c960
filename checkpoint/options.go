package checkpoint

import (
	"os"
	"strconv"

	"github.com/phuslu/log"
)

// Implementation-defined limits referenced by the spec. These bound the
// worst-case cost of allocation search and construction-time validation;
// they are not tunable at runtime.
const (
	// SearchLimit bounds the number of positions scanned per allocate()
	// call before falling back to append-on-miss.
	SearchLimit = 1024

	// SplitCountLimit is the largest split count a store will accept.
	SplitCountLimit = 1024

	// StripeSizeLimit is the largest stripe size (in blocks) a store
	// will accept.
	StripeSizeLimit = 1 << 20

	// MinBlockExpSize / MaxBlockExpSize bound the block size exponent E.
	MinBlockExpSize = 9  // 512 bytes
	MaxBlockExpSize = 30 // 1 GiB

	// DefaultIOWarningThresholdMillis is the default long-I/O reporting
	// threshold when Options.IOWarningThresholdMillis is left at zero.
	DefaultIOWarningThresholdMillis = 1000

	filePrefix    = "gs_cp_"
	fileSeparator = "_"
	fileExtension = ".dat"

	// nonSplitFileIndex is the historical literal split index used in
	// file names when the store is not split. Preserved for on-disk
	// name compatibility; do not change to 0.
	nonSplitFileIndex = 1

	permissionBits = 0755
)

// Options groups every construction-time parameter for a CheckpointFile,
// following the single-options-struct convention the rest of this
// codebase's lineage uses (FileOptions / HeapFileOptions).
type Options struct {
	// BlockExpSize is E: BlockSize = 1 << BlockExpSize.
	BlockExpSize uint8

	// BaseDir is the directory used in non-split mode.
	BaseDir string

	// PgID is the partition-group identifier embedded in file names.
	PgID uint32

	// SplitCount is S. Zero means non-split (a single file in BaseDir).
	SplitCount uint32

	// StripeSize is T, the run length of consecutive blocks routed to
	// the same file before rotating to the next one. Ignored when
	// SplitCount is zero.
	StripeSize uint32

	// ConfigDirList is the round-robin directory list used in split
	// mode. Must be empty when SplitCount is zero.
	ConfigDirList []string

	// IOWarningThresholdMillis is the Warn threshold of the LogMonitor
	// installed when Monitor is nil and Logger is set. A caller-supplied
	// Monitor receives every event and applies its own threshold. Zero
	// selects DefaultIOWarningThresholdMillis.
	IOWarningThresholdMillis int64

	// Monitor receives structured I/O events. A nil Monitor installs a
	// LogMonitor over Logger when Logger is set, and a NoopMonitor
	// otherwise.
	Monitor Monitor

	// Logger receives Error-level records for failures of Open,
	// Truncate and the block I/O methods (including lock failures
	// surfaced by them). A nil Logger silently drops these and, when
	// Monitor is also nil, leaves the store with a NoopMonitor.
	Logger *log.Logger
}

func (o *Options) blockSize() uint64 {
	return uint64(1) << o.BlockExpSize
}

func (o *Options) splitMode() bool {
	return o.SplitCount > 0
}

func (o *Options) splitCountOrOne() uint32 {
	if o.SplitCount == 0 {
		return 1
	}
	return o.SplitCount
}

func (o *Options) ioWarningThreshold() int64 {
	if o.IOWarningThresholdMillis > 0 {
		return o.IOWarningThresholdMillis
	}
	return DefaultIOWarningThresholdMillis
}

// validate checks the construction parameters per the invalid-configuration
// rules in the spec and returns a *ConfigError describing the first
// violation found.
func (o *Options) validate() error {
	if o.BlockExpSize < MinBlockExpSize || o.BlockExpSize > MaxBlockExpSize {
		return &ConfigError{Reason: "blockExpSize out of range"}
	}

	if o.splitMode() {
		if len(o.ConfigDirList) == 0 {
			return &ConfigError{Reason: "split mode requires a non-empty configDirList"}
		}
		if uint32(len(o.ConfigDirList)) > o.SplitCount {
			return &ConfigError{Reason: "configDirList has more entries than splitCount"}
		}
		if o.SplitCount > SplitCountLimit {
			return &ConfigError{Reason: "splitCount exceeds SPLIT_COUNT_LIMIT"}
		}
		if o.StripeSize == 0 {
			return &ConfigError{Reason: "split mode requires a non-zero stripeSize"}
		}
		if o.StripeSize > StripeSizeLimit {
			return &ConfigError{Reason: "stripeSize exceeds STRIPE_SIZE_LIMIT"}
		}
		for _, dir := range o.ConfigDirList {
			if err := checkDirectory(dir); err != nil {
				return err
			}
		}
	} else if len(o.ConfigDirList) != 0 {
		return &ConfigError{Reason: "configDirList must be empty when splitCount is zero"}
	}

	return nil
}

// checkDirectory returns a *ConfigError if dir exists but is not a
// directory, or cannot be inspected. A dir that does not exist yet is
// tolerated here; open checks existence separately.
func checkDirectory(dir string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &ConfigError{Reason: "cannot stat configDirList entry " + strconv.Quote(dir) + ": " + err.Error()}
	}
	if !info.IsDir() {
		return &ConfigError{Reason: "configDirList entry " + strconv.Quote(dir) + " is not a directory"}
	}
	return nil
}

// dirFor returns the directory the i-th split file lives in.
func (o *Options) dirFor(i uint32) string {
	if !o.splitMode() {
		return o.BaseDir
	}
	return o.ConfigDirList[i%uint32(len(o.ConfigDirList))]
}

// fileNameFor returns the deterministic on-disk name of the i-th split
// file (or the sole file, in non-split mode).
func (o *Options) fileNameFor(i uint32) string {
	idx := i
	if !o.splitMode() {
		idx = nonSplitFileIndex
	}
	return filePrefix + strconv.FormatUint(uint64(o.PgID), 10) + fileSeparator +
		strconv.FormatUint(uint64(idx), 10) + fileExtension
}
