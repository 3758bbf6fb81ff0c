/*
Package oamap provides an open-addressing hash map with linear probing.

Keys and values live inline in one flat slot array. Each slot carries a tag:
empty, occupied or tombstone. Erasing an entry leaves a tombstone that
lookups step over and inserts reuse, so erase never moves other entries.

Basic usage:

	m := oamap.New[string, int](oamap.WithMaxLoadFactor(0.5))
	m.Insert("a", 1)
	m.InsertOrAssign("b", 2)
	*m.Index("c") += 3

	v, err := m.At("missing")
	if errors.Is(err, oamap.ErrKeyNotFound) {
		// ...
	}

	for c := m.Begin(); !c.IsEnd(); c.Next() {
		e, _ := c.Entry()
		fmt.Println(e.Key, e.Value)
	}

Growth:

The table starts with one bucket. When an insert would push
Size()/BucketCount() above MaxLoadFactor(), or the probe walks the whole
table without finding a free slot, the bucket count at least doubles and
every live entry is re-probed into the new table. Tombstones are dropped on
every rehash. Rehash and Reserve rebuild the table explicitly.

Storage:

The entry array comes from a Memory strategy. HeapMemory (the default)
allocates on the Go heap, PoolMemory recycles arrays across maps by
power-of-two size class, and MmapMemory places pointer-free entries in
anonymous memory mappings.

A Map is not safe for concurrent use.
*/
package oamap
