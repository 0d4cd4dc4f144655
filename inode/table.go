package inode

import (
	"fmt"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
)

// Table is the Inode Table: the single slot vector of every live Node in
// the filesystem, plus the free list of recycled inode numbers. Its lock
// guards only the slot vector and the free queue -- never a Node's own
// fields or a Directory's entries. The table lock is held only briefly,
// to resolve an inode number to a *Node or to install/remove a slot, and
// no Node lock is ever acquired while it is held; callers may therefore
// call into the table while holding Node locks (the dispatcher allocates
// and removes under the parent directory's lock).
type Table struct {
	// No Node lock is ever acquired while this lock is held.
	mu syncutil.InvariantMutex // GUARDED_BY(mu): slots, freeQueue

	clock timeutil.Clock

	// slots[i] holds the live node for inode number i+1, or nil if that
	// inode number is currently free.
	//
	// INVARIANT: len(slots) >= 1
	// INVARIANT: slots[RootID-1] != nil
	// INVARIANT: slots[RootID-1].IsDir()
	// INVARIANT: every id in freeQueue has slots[id-1] == nil
	// INVARIANT: every nil entry of slots has its id in freeQueue exactly once
	slots []*Node

	// generations[i] is the next generation number to hand out when inode
	// number i+1 is (re)allocated.
	generations []uint64

	// freeQueue holds recycled inode numbers in FIFO order: Remove appends
	// to the back, Allocate pops from the front, so the least recently
	// freed inode is the first to be reused.
	freeQueue []uint64
}

// NewTable builds a table with only the root directory present, owned by
// rootUID/rootGID (ordinarily the uid/gid of the process performing the
// mount, so that the mounting user can actually use the filesystem).
func NewTable(clock timeutil.Clock, rootUID, rootGID uint32) *Table {
	t := &Table{clock: clock}

	root := newNode(RootID, 0, KindDirNode, 0755, rootUID, rootGID, clock.Now())
	t.slots = []*Node{root}
	t.generations = []uint64{1}

	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

func (t *Table) checkInvariants() {
	if len(t.slots) < 1 {
		panic("inode: empty slot vector")
	}
	if t.slots[RootID-1] == nil {
		panic("inode: root slot is free")
	}
	if !t.slots[RootID-1].IsDir() {
		panic("inode: root is not a directory")
	}

	free := make(map[uint64]bool, len(t.freeQueue))
	for _, id := range t.freeQueue {
		if free[id] {
			panic(fmt.Sprintf("inode: id %d listed twice in free queue", id))
		}
		free[id] = true
		if t.slots[id-1] != nil {
			panic(fmt.Sprintf("inode: id %d is both free and occupied", id))
		}
	}
	for i, n := range t.slots {
		id := uint64(i + 1)
		if n == nil && !free[id] {
			panic(fmt.Sprintf("inode: id %d is nil but not in free queue", id))
		}
	}
}

// Allocate installs a new node of the given kind, reusing the oldest freed
// inode number if one is available (FIFO), and appending a fresh slot
// otherwise.
func (t *Table) Allocate(kind Kind, mode uint32, uid, gid uint32) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()

	if len(t.freeQueue) > 0 {
		id := t.freeQueue[0]
		t.freeQueue = t.freeQueue[1:]

		gen := t.generations[id-1]
		n := newNode(id, gen, kind, mode, uid, gid, now)
		t.slots[id-1] = n
		return n
	}

	id := uint64(len(t.slots) + 1)
	t.generations = append(t.generations, 1)
	n := newNode(id, t.generations[id-1], kind, mode, uid, gid, now)
	t.slots = append(t.slots, n)
	return n
}

// Load resolves an inode number to its live Node.
func (t *Table) Load(id uint64) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadLocked(id)
}

func (t *Table) loadLocked(id uint64) (*Node, error) {
	if id < RootID || id > uint64(len(t.slots)) {
		return nil, ErrNotFound("no such inode %d", id)
	}
	n := t.slots[id-1]
	if n == nil {
		return nil, ErrNotFound("inode %d has been removed", id)
	}
	return n, nil
}

// Remove deletes the node occupying id from the table and queues id for
// reuse. The caller is responsible for having already detached the node
// from its parent directory.
func (t *Table) Remove(id uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.loadLocked(id); err != nil {
		return err
	}

	t.slots[id-1] = nil
	t.generations[id-1]++
	t.freeQueue = append(t.freeQueue, id)
	return nil
}
