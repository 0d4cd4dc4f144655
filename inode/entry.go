package inode

import "time"

// LongCacheTimeout is handed back to the kernel for both entry and
// attribute cache timeouts. Since this table is itself the single source
// of truth and every mutation goes through it, there is nothing the kernel
// can observe going stale; a timeout of roughly 2^32 seconds tells it to
// effectively never re-query on its own.
const LongCacheTimeout = time.Duration(1<<32) * time.Second

// Entry is the information returned to a caller (directly, or via
// fuseadapter) about one node: its identity plus a snapshot of its derived
// attributes, valid as of the moment it was built.
type Entry struct {
	Inode      uint64
	Generation uint64
	Kind       Kind
	Attr       Attr
	Size       uint64
	Nlink      uint32

	EntryTimeout time.Duration
	AttrTimeout  time.Duration
}

// BuildEntry snapshots n's current state into an Entry. The caller must
// hold at least n.RLock(). For a file node the size is read through
// File.Len, which takes the File's own content lock itself, so the caller
// must not hold that lock.
func BuildEntry(n *Node) Entry {
	return Entry{
		Inode:        n.ID,
		Generation:   n.Generation,
		Kind:         n.Kind,
		Attr:         n.Attr,
		Size:         n.Size(),
		Nlink:        n.Nlink,
		EntryTimeout: LongCacheTimeout,
		AttrTimeout:  LongCacheTimeout,
	}
}
