/*
Package ixkv implements typed, indexed collections on top of a flat ordered
key-value store.

We implement:

1. Maps, storing typed values under typed (possibly composite) keys in a
namespace of the underlying store.

2. Prefixes, ranging over the records of a composite-keyed map whose leading
key elements are fixed, with typed inclusive/exclusive bounds.

3. Indexed maps and sets, keeping secondary unique and multi indexes in sync
with every save, remove and update of the primary records.

4. Storage backends: an in-memory store, a write buffer that commits
atomically, and bbolt (in this package), goleveldb (ldbstore) and Pebble
(pebblestore).

# Technical Details

**Namespaces.**
Every raw key starts with its namespace, prefixed with a 2-byte big-endian
length. Namespaces therefore never collide, even when one is a prefix of
another, and a flat store like leveldb hosts any number of collections.

**Keys.**
A typed key is a list of byte segments. Every segment but the last is
length-prefixed like a namespace; the last one is appended as is. Integers
are big-endian, signed ones with the sign bit flipped, so byte order equals
value order. Because of the length prefix, a leading string element sorts
by length before bytes: ("b", 1) comes before ("ab", 1).

**Bounds.**
Scans are half-open [min, max) ranges of raw keys. Appending 0x00 to an
encoded key gives the smallest key after it, which turns an exclusive lower
bound and an inclusive upper bound into plain raw bounds.

**Unique indexes** store varbytes(primary key) followed by the encoded data
(UniqueIndexMap) or nothing (UniqueIndexSet) under the index key.

**Multi indexes** store one record per primary key, keyed by the index key
segments followed by the primary key segments.

**Atomicity.**
An indexed save runs every uniqueness check before writing anything, so a
duplicate leaves the store unchanged. Storage failures midway can still leave
partial writes; run the operation against a Buffer, or inside a bbolt
Update, and discard it on error.
*/
package ixkv
