package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/recall/core"
)

// Key prefixes for different data types
const (
	itemPrefix      = "conitm"
	itemOwnerPrefix = "conown"
	itemKindPrefix  = "conknd"
	itemDatePrefix  = "condat"
	itemIDSeq       = "conitmseq"
)

// ownerSep terminates the variable-length owner component of composite keys
// so one owner's prefix can never match another owner's keys.
const ownerSep byte = 0x00

// makeItemKey generates a key for a content item by ID.
func makeItemKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", itemPrefix, id))
}

// makeOwnerKey generates a composite key for the owner index.
// Format: prefix:owner<sep>id
func makeOwnerKey(owner core.OwnerID, id core.ID) []byte {
	buf := makePartialOwnerKey(itemOwnerPrefix, owner)
	offset := len(buf)
	buf = append(buf, make([]byte, 8)...)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeKindKey generates a composite key for the kind index.
// Format: prefix:owner<sep>kind:id
func makeKindKey(owner core.OwnerID, kind core.Kind, id core.ID) []byte {
	buf := makePartialKindKey(owner, kind)
	offset := len(buf)
	buf = append(buf, make([]byte, 8)...)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialKindKey generates a partial key for kind queries.
func makePartialKindKey(owner core.OwnerID, kind core.Kind) []byte {
	buf := makePartialOwnerKey(itemKindPrefix, owner)
	return append(buf, byte(kind))
}

// makeDateKey generates a composite key for the date index.
// Format: prefix:owner<sep>timestamp:id
// Timestamp and ID are written BigEndian so lexicographic sort works correctly.
func makeDateKey(owner core.OwnerID, timestamp time.Time, id core.ID) []byte {
	buf := makePartialDateKey(owner, timestamp)
	offset := len(buf)
	buf = append(buf, make([]byte, 8)...)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialDateKey generates a partial key for date range queries.
func makePartialDateKey(owner core.OwnerID, timestamp time.Time) []byte {
	buf := makePartialOwnerKey(itemDatePrefix, owner)
	offset := len(buf)
	buf = append(buf, make([]byte, 8)...)
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	return buf
}

// makePartialOwnerKey builds "prefix:owner<sep>" for owner-scoped iteration.
func makePartialOwnerKey(prefix string, owner core.OwnerID) []byte {
	buf := make([]byte, 0, len(prefix)+1+len(owner)+1)
	buf = append(buf, prefix...)
	buf = append(buf, ':')
	buf = append(buf, owner...)
	buf = append(buf, ownerSep)
	return buf
}

// idFromKeySuffix extracts the trailing BigEndian item ID from a composite key.
func idFromKeySuffix(key []byte) core.ID {
	if len(key) < 8 {
		return 0
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}
