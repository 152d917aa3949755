package headerfs

import (
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// MetadataCache is a small goleveldb-backed index of checkpoint -> (parent
// checkpoint, size) pairs. It is never a source of truth: Bootstrap and
// SwapWithParent record entries in it, but nothing in this package reads
// them back. Bootstrap always takes branch identity from the fork
// filenames and sizes from the file lengths on disk.
type MetadataCache struct {
	db *leveldb.DB
}

// OpenMetadataCache opens (creating if necessary) a leveldb database at
// path to back a MetadataCache.
func OpenMetadataCache(path string) (*MetadataCache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("headerfs: opening metadata cache at %s: %w", path, err)
	}
	return &MetadataCache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *MetadataCache) Close() error {
	return c.db.Close()
}

// cacheKey encodes a checkpoint as a big-endian int64 so leveldb's default
// byte-order iteration also walks entries in ascending checkpoint order.
func cacheKey(checkpoint int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(checkpoint))
	return buf[:]
}

// cacheValue packs (hasParent, parentID, size) into a fixed-width record.
func cacheValue(parentID *int64, size int64) []byte {
	var buf [17]byte
	if parentID != nil {
		buf[0] = 1
		binary.BigEndian.PutUint64(buf[1:9], uint64(*parentID))
	}
	binary.BigEndian.PutUint64(buf[9:17], uint64(size))
	return buf[:]
}

func parseCacheValue(v []byte) (parentID *int64, size int64, ok bool) {
	if len(v) != 17 {
		return nil, 0, false
	}
	if v[0] == 1 {
		id := int64(binary.BigEndian.Uint64(v[1:9]))
		parentID = &id
	}
	size = int64(binary.BigEndian.Uint64(v[9:17]))
	return parentID, size, true
}

// Put records (or overwrites) the metadata for one branch checkpoint.
func (c *MetadataCache) Put(checkpoint int64, parentID *int64, size int64) error {
	return c.db.Put(cacheKey(checkpoint), cacheValue(parentID, size), nil)
}

// Get returns the cached metadata for a checkpoint, if any.
func (c *MetadataCache) Get(checkpoint int64) (parentID *int64, size int64, ok bool) {
	v, err := c.db.Get(cacheKey(checkpoint), nil)
	if err != nil {
		return nil, 0, false
	}
	return parseCacheValue(v)
}

// Delete removes a checkpoint's cached metadata.
func (c *MetadataCache) Delete(checkpoint int64) error {
	return c.db.Delete(cacheKey(checkpoint), nil)
}

// Checkpoints returns every checkpoint currently recorded in the cache,
// in ascending order.
func (c *MetadataCache) Checkpoints() ([]int64, error) {
	iter := c.db.NewIterator(nil, nil)
	defer iter.Release()

	var out []int64
	for iter.Next() {
		out = append(out, int64(binary.BigEndian.Uint64(iter.Key())))
	}
	return out, iter.Error()
}
