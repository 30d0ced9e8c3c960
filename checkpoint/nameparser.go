package checkpoint

import (
	"strconv"
	"strings"
)

// ParsedFileName is the result of successfully parsing a checkpoint
// file's base name.
type ParsedFileName struct {
	PgID       uint32
	SplitIndex int32
}

// ParseFileName parses a checkpoint file's base name of the exact form
// "gs_cp_<uint>_<int>.dat", mirroring the original's checkFileName:
// a fixed prefix, a non-negative pgId, a single separating underscore,
// a (possibly negative) split index, and a fixed suffix with nothing
// left over. Any deviation - a missing split index, trailing garbage
// after the extension, a non-numeric field - is rejected. Exported so
// external discovery/recovery code walking a checkpoint directory can
// recognize and decompose the files it finds there.
func ParseFileName(name string) (ParsedFileName, bool) {
	if !strings.HasPrefix(name, filePrefix) {
		return ParsedFileName{}, false
	}
	if !strings.HasSuffix(name, fileExtension) {
		return ParsedFileName{}, false
	}

	body := name[len(filePrefix) : len(name)-len(fileExtension)]
	if body == "" {
		return ParsedFileName{}, false
	}

	sep := strings.LastIndex(body, fileSeparator)
	if sep <= 0 || sep == len(body)-1 {
		return ParsedFileName{}, false
	}

	pgIDStr := body[:sep]
	splitStr := body[sep+1:]

	pgID, err := strconv.ParseUint(pgIDStr, 10, 32)
	if err != nil {
		return ParsedFileName{}, false
	}
	splitIndex, err := strconv.ParseInt(splitStr, 10, 32)
	if err != nil {
		return ParsedFileName{}, false
	}

	return ParsedFileName{PgID: uint32(pgID), SplitIndex: int32(splitIndex)}, true
}
