package storage

const (
	keyRecord = ":rec:"
	keyIndex  = ":index"
	keySeq    = ":seq"
)

// recordKey returns the hash key holding one record of a collection.
func recordKey(collection, id string) string {
	return collection + keyRecord + id
}

// indexKey returns the sorted set that keeps a collection's scan order.
func indexKey(collection string) string {
	return collection + keyIndex
}

// seqKey returns the counter used to score new index entries.
func seqKey(collection string) string {
	return collection + keySeq
}
