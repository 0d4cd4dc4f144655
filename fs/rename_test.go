package fs_test

import (
	"github.com/jacobsa/memfused/fs"
	"github.com/jacobsa/memfused/inode"

	. "github.com/jacobsa/ogletest"
)

type RenameTest struct {
	FileSystemTest
}

func init() { RegisterTestSuite(&RenameTest{}) }

func (t *RenameTest) RenameWithinSameDirectory() {
	id := t.mknod(inode.RootID, "old")

	_, err := t.fs.Rename(&fs.RenameRequest{
		OldParent: inode.RootID, OldName: "old",
		NewParent: inode.RootID, NewName: "new",
	})
	AssertEq(nil, err)

	resp, err := t.fs.LookUpInode(&fs.LookUpInodeRequest{Parent: inode.RootID, Name: "new"})
	AssertEq(nil, err)
	ExpectEq(id, resp.Entry.Inode)

	_, err = t.fs.LookUpInode(&fs.LookUpInodeRequest{Parent: inode.RootID, Name: "old"})
	ExpectNe(nil, err)
}

func (t *RenameTest) RenameAcrossDirectories() {
	dirA := t.mkdir(inode.RootID, "a")
	dirB := t.mkdir(inode.RootID, "b")
	id := t.mknod(dirA, "f")

	_, err := t.fs.Rename(&fs.RenameRequest{
		OldParent: dirA, OldName: "f",
		NewParent: dirB, NewName: "f",
	})
	AssertEq(nil, err)

	resp, err := t.fs.LookUpInode(&fs.LookUpInodeRequest{Parent: dirB, Name: "f"})
	AssertEq(nil, err)
	ExpectEq(id, resp.Entry.Inode)
}

func (t *RenameTest) RenameRejectsMovingDirectoryIntoOwnDescendant() {
	parent := t.mkdir(inode.RootID, "parent")
	child := t.mkdir(parent, "child")

	_, err := t.fs.Rename(&fs.RenameRequest{
		OldParent: inode.RootID, OldName: "parent",
		NewParent: child, NewName: "parent",
	})
	AssertNe(nil, err)
	kind, ok := inode.KindOf(err)
	AssertTrue(ok)
	ExpectEq(inode.KindInvalidInput, kind)
}

func (t *RenameTest) RenameRejectsMovingDirectoryIntoItself() {
	dir := t.mkdir(inode.RootID, "dir")

	_, err := t.fs.Rename(&fs.RenameRequest{
		OldParent: inode.RootID, OldName: "dir",
		NewParent: dir, NewName: "dir",
	})
	AssertNe(nil, err)
}

func (t *RenameTest) RenameOntoEmptyDirectoryReplacesIt() {
	srcID := t.mkdir(inode.RootID, "src")
	dstID := t.mkdir(inode.RootID, "dst")

	_, err := t.fs.Rename(&fs.RenameRequest{
		OldParent: inode.RootID, OldName: "src",
		NewParent: inode.RootID, NewName: "dst",
	})
	AssertEq(nil, err)

	resp, err := t.fs.LookUpInode(&fs.LookUpInodeRequest{Parent: inode.RootID, Name: "dst"})
	AssertEq(nil, err)
	ExpectEq(srcID, resp.Entry.Inode)
	ExpectNe(dstID, resp.Entry.Inode)
}

func (t *RenameTest) RenameOntoNonEmptyDirectoryFails() {
	t.mkdir(inode.RootID, "src")
	dst := t.mkdir(inode.RootID, "dst")
	t.mknod(dst, "occupant")

	_, err := t.fs.Rename(&fs.RenameRequest{
		OldParent: inode.RootID, OldName: "src",
		NewParent: inode.RootID, NewName: "dst",
	})
	AssertNe(nil, err)
	kind, _ := inode.KindOf(err)
	ExpectEq(inode.KindNotEmpty, kind)
}

func (t *RenameTest) RenameRejectsUnsupportedFlags() {
	t.mknod(inode.RootID, "f")

	_, err := t.fs.Rename(&fs.RenameRequest{
		OldParent: inode.RootID, OldName: "f",
		NewParent: inode.RootID, NewName: "g",
		Flags: fs.RenameNoReplace,
	})
	AssertNe(nil, err)
	kind, ok := inode.KindOf(err)
	AssertTrue(ok)
	ExpectEq(inode.KindInvalidInput, kind)

	// The rejected rename must not have partially applied.
	_, err = t.fs.LookUpInode(&fs.LookUpInodeRequest{Parent: inode.RootID, Name: "f"})
	ExpectEq(nil, err)
}

func (t *RenameTest) RenameMissingSourceFails() {
	_, err := t.fs.Rename(&fs.RenameRequest{
		OldParent: inode.RootID, OldName: "nope",
		NewParent: inode.RootID, NewName: "also-nope",
	})
	AssertNe(nil, err)
	kind, _ := inode.KindOf(err)
	ExpectEq(inode.KindNotFound, kind)
}
