package inode_test

import (
	"testing"

	"github.com/jacobsa/memfused/inode"

	. "github.com/jacobsa/ogletest"
)

// Directory and File have no exported constructors -- they are always
// owned by a Node -- so these are exercised through nodes allocated from a
// table, reusing the TableTest fixture from table_test.go.

func TestNode(t *testing.T) { RunTests(t) }

func (t *TableTest) DirectoryStartsEmpty() {
	dirNode := t.table.Allocate(inode.KindDirNode, 0755, 0, 0)
	ExpectEq(0, dirNode.Dir().Len())
}

func (t *TableTest) DirectoryAddAndLookup() {
	dirNode := t.table.Allocate(inode.KindDirNode, 0755, 0, 0)
	child := t.table.Allocate(inode.KindFileNode, 0644, 0, 0)

	d := dirNode.Dir()
	d.Add(inode.DirEntry{Name: "b", Inode: child.ID, Kind: inode.KindFileNode})
	d.Add(inode.DirEntry{Name: "a", Inode: child.ID, Kind: inode.KindFileNode})

	entries := d.Entries()
	AssertEq(2, len(entries))
	ExpectEq("a", entries[0].Name)
	ExpectEq("b", entries[1].Name)

	e, ok := d.Lookup("a")
	AssertTrue(ok)
	ExpectEq(child.ID, e.Inode)

	_, ok = d.Lookup("missing")
	ExpectFalse(ok)
}

func (t *TableTest) DirectoryRemove() {
	dirNode := t.table.Allocate(inode.KindDirNode, 0755, 0, 0)
	d := dirNode.Dir()
	d.Add(inode.DirEntry{Name: "x", Inode: 42, Kind: inode.KindFileNode})
	AssertEq(1, d.Len())

	d.Remove("x")
	ExpectEq(0, d.Len())

	_, ok := d.Lookup("x")
	ExpectFalse(ok)
}

func (t *TableTest) FileReadWriteRoundTrip() {
	fileNode := t.table.Allocate(inode.KindFileNode, 0644, 0, 0)
	f := fileNode.File()

	n := f.WriteAt([]byte("hello"), 0)
	ExpectEq(5, n)

	buf := make([]byte, 5)
	n = f.ReadAt(buf, 0)
	ExpectEq(5, n)
	ExpectEq("hello", string(buf))
}

func (t *TableTest) FileWritePastEndZeroFillsGap() {
	fileNode := t.table.Allocate(inode.KindFileNode, 0644, 0, 0)
	f := fileNode.File()

	f.WriteAt([]byte("AB"), 5)
	ExpectEq(7, f.Len())

	buf := make([]byte, 7)
	f.ReadAt(buf, 0)
	ExpectEq(string([]byte{0, 0, 0, 0, 0, 'A', 'B'}), string(buf))
}

func (t *TableTest) FileTruncateGrowsWithZeros() {
	fileNode := t.table.Allocate(inode.KindFileNode, 0644, 0, 0)
	f := fileNode.File()
	f.WriteAt([]byte("hi"), 0)

	f.Truncate(4)
	ExpectEq(4, f.Len())

	buf := make([]byte, 4)
	f.ReadAt(buf, 0)
	ExpectEq(string([]byte{'h', 'i', 0, 0}), string(buf))
}

func (t *TableTest) FileTruncateShrinks() {
	fileNode := t.table.Allocate(inode.KindFileNode, 0644, 0, 0)
	f := fileNode.File()
	f.WriteAt([]byte("hello"), 0)

	f.Truncate(2)
	ExpectEq(2, f.Len())

	buf := make([]byte, 2)
	f.ReadAt(buf, 0)
	ExpectEq("he", string(buf))
}
