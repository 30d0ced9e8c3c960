package checkpoint

import "fmt"

// ConfigError reports an invalid construction-time parameter.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("checkpoint file: invalid configuration: %s", e.Reason)
}

// NotFoundError reports that a required backing file is absent and the
// open mode forbids creating it.
type NotFoundError struct {
	FileName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("checkpoint file: file not found: %s", e.FileName)
}

// InvalidDirectoryError reports that a configured directory does not
// exist, or exists but is not a directory.
type InvalidDirectoryError struct {
	Dir    string
	Reason string
}

func (e *InvalidDirectoryError) Error() string {
	return fmt.Sprintf("checkpoint file: invalid directory %q: %s", e.Dir, e.Reason)
}

// InvalidParameterError reports an out-of-range read/write request.
type InvalidParameterError struct {
	Reason   string
	BlockNo  uint64
	NBlocks  uint64
	BlockNum uint64
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf(
		"checkpoint file: invalid parameter: %s (blockNo=%d, nBlocks=%d, blockCount=%d)",
		e.Reason, e.BlockNo, e.NBlocks, e.BlockNum,
	)
}

// IOError wraps an underlying OS error with the file/pgId/offset/size
// context needed to diagnose it, per the error-handling design: every
// surfaced I/O failure names the file, partition group, offset and size.
type IOError struct {
	Op       string
	FileName string
	PgID     uint32
	Offset   uint64
	Size     uint64
	Err      error
}

func (e *IOError) Error() string {
	return fmt.Sprintf(
		"checkpoint file: %s failed: file=%s pgId=%d offset=%d size=%d: %v",
		e.Op, e.FileName, e.PgID, e.Offset, e.Size, e.Err,
	)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
