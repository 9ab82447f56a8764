package service

import (
	"fmt"
	"hash/crc32"
	"time"
)

// defaultEventID derives a stable event identity. A partner-supplied numeric
// identifier is reused verbatim; otherwise a CRC32 checksum over the
// identifier, site and start instant is masked to 31 bits so the result is a
// non-negative deterministic fallback. Pure function: the same inputs always
// yield the same id, which keeps re-processing of a dump idempotent.
func defaultEventID(execUnitID any, site *string, start *time.Time) int64 {
	if n := toInt(execUnitID); n != nil {
		return *n
	}
	siteStr := ""
	if site != nil {
		siteStr = *site
	}
	startStr := ""
	if start != nil {
		startStr = start.Format("2006-01-02T15:04:05.999999999")
	}
	seed := fmt.Sprintf("%v|%s|%s", execUnitID, siteStr, startStr)
	return int64(crc32.ChecksumIEEE([]byte(seed)) & 0x7FFFFFFF)
}
