package cache

import "fmt"

// Cache key prefixes
const (
	keyPrefixRecordDetail = "conversion_record:"
	keyPrefixRecordList   = "conversion_records:"
)

// RecordDetailKey is the cache key for one record. A record never
// changes after creation, so detail entries tolerate a long TTL.
func RecordDetailKey(recordID uint) string {
	return fmt.Sprintf("%s%d", keyPrefixRecordDetail, recordID)
}

// RecordListKey is the deterministic key for one page of a user's
// record list. List entries expire passively rather than being
// invalidated on record creation; the staleness window is accepted.
func RecordListKey(userID uint, limit, offset int, formatFilter string) string {
	return fmt.Sprintf("%s%d:%d:%d:%s", keyPrefixRecordList, userID, limit, offset, formatFilter)
}

// RecordListPattern matches every cached list page of one user, for
// invalidation on deletion.
func RecordListPattern(userID uint) string {
	return fmt.Sprintf("%s%d:*", keyPrefixRecordList, userID)
}
