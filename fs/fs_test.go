package fs_test

import (
	"testing"

	"github.com/jacobsa/memfused/fs"
	"github.com/jacobsa/memfused/inode"
	"github.com/jacobsa/timeutil"
	"github.com/kylelemons/godebug/pretty"

	. "github.com/jacobsa/ogletest"
)

func TestFileSystem(t *testing.T) { RunTests(t) }

type FileSystemTest struct {
	clock *timeutil.SimulatedClock
	fs    *fs.FileSystem
}

func init() { RegisterTestSuite(&FileSystemTest{}) }

func (t *FileSystemTest) SetUp(ti *TestInfo) {
	t.clock = &timeutil.SimulatedClock{}
	t.fs = fs.New(t.clock, 0, 0)
}

func (t *FileSystemTest) mkdir(parent uint64, name string) uint64 {
	resp, err := t.fs.MkDir(&fs.MkDirRequest{Parent: parent, Name: name, Mode: 0755})
	AssertEq(nil, err)
	return resp.Entry.Inode
}

func (t *FileSystemTest) mknod(parent uint64, name string) uint64 {
	resp, err := t.fs.Mknod(&fs.MknodRequest{Parent: parent, Name: name, Mode: 0644})
	AssertEq(nil, err)
	return resp.Entry.Inode
}

func (t *FileSystemTest) LookUpFindsCreatedChild() {
	id := t.mkdir(inode.RootID, "dir")

	resp, err := t.fs.LookUpInode(&fs.LookUpInodeRequest{Parent: inode.RootID, Name: "dir"})
	AssertEq(nil, err)
	ExpectEq(id, resp.Entry.Inode)
}

func (t *FileSystemTest) LookUpMissingNameFails() {
	_, err := t.fs.LookUpInode(&fs.LookUpInodeRequest{Parent: inode.RootID, Name: "nope"})
	AssertNe(nil, err)
	kind, ok := inode.KindOf(err)
	AssertTrue(ok)
	ExpectEq(inode.KindNotFound, kind)
}

func (t *FileSystemTest) MkDirRejectsDuplicateName() {
	t.mkdir(inode.RootID, "dir")
	_, err := t.fs.MkDir(&fs.MkDirRequest{Parent: inode.RootID, Name: "dir", Mode: 0755})
	AssertNe(nil, err)
	kind, _ := inode.KindOf(err)
	ExpectEq(inode.KindAlreadyExists, kind)
}

func (t *FileSystemTest) MknodRejectsDuplicateName() {
	t.mknod(inode.RootID, "f")
	_, err := t.fs.Mknod(&fs.MknodRequest{Parent: inode.RootID, Name: "f", Mode: 0644})
	AssertNe(nil, err)
	kind, _ := inode.KindOf(err)
	ExpectEq(inode.KindAlreadyExists, kind)
}

func (t *FileSystemTest) RmDirRejectsNonEmptyDirectory() {
	dir := t.mkdir(inode.RootID, "dir")
	t.mknod(dir, "f")

	_, err := t.fs.RmDir(&fs.RmDirRequest{Parent: inode.RootID, Name: "dir"})
	AssertNe(nil, err)
	kind, _ := inode.KindOf(err)
	ExpectEq(inode.KindNotEmpty, kind)
}

func (t *FileSystemTest) RmDirSucceedsOnEmptyDirectoryAndRecyclesInode() {
	id := t.mkdir(inode.RootID, "dir")

	_, err := t.fs.RmDir(&fs.RmDirRequest{Parent: inode.RootID, Name: "dir"})
	AssertEq(nil, err)

	_, err = t.fs.LookUpInode(&fs.LookUpInodeRequest{Parent: inode.RootID, Name: "dir"})
	AssertNe(nil, err)

	reused := t.mkdir(inode.RootID, "dir2")
	ExpectEq(id, reused)
}

func (t *FileSystemTest) UnlinkRejectsDirectory() {
	t.mkdir(inode.RootID, "dir")
	_, err := t.fs.Unlink(&fs.UnlinkRequest{Parent: inode.RootID, Name: "dir"})
	AssertNe(nil, err)
	kind, _ := inode.KindOf(err)
	ExpectEq(inode.KindIsADirectory, kind)
}

func (t *FileSystemTest) RmDirRejectsFile() {
	t.mknod(inode.RootID, "f")
	_, err := t.fs.RmDir(&fs.RmDirRequest{Parent: inode.RootID, Name: "f"})
	AssertNe(nil, err)
	kind, _ := inode.KindOf(err)
	ExpectEq(inode.KindNotADirectory, kind)
}

func (t *FileSystemTest) UnlinkRemovesFile() {
	t.mknod(inode.RootID, "f")

	_, err := t.fs.Unlink(&fs.UnlinkRequest{Parent: inode.RootID, Name: "f"})
	AssertEq(nil, err)

	_, err = t.fs.LookUpInode(&fs.LookUpInodeRequest{Parent: inode.RootID, Name: "f"})
	AssertNe(nil, err)
}

func (t *FileSystemTest) WriteThenReadRoundTrips() {
	id := t.mknod(inode.RootID, "f")

	_, err := t.fs.OpenFile(&fs.OpenFileRequest{Inode: id})
	AssertEq(nil, err)

	_, err = t.fs.WriteFile(&fs.WriteFileRequest{Inode: id, Offset: 0, Data: []byte("hello world")})
	AssertEq(nil, err)

	read, err := t.fs.ReadFile(&fs.ReadFileRequest{Inode: id, Offset: 0, Size: 64})
	AssertEq(nil, err)
	ExpectEq("hello world", string(read.Data))
}

func (t *FileSystemTest) OpenFileReturnsNoFileHandleSinceOpenIsStateless() {
	id := t.mknod(inode.RootID, "f")

	open, err := t.fs.OpenFile(&fs.OpenFileRequest{Inode: id})
	AssertEq(nil, err)
	ExpectEq(uint64(0), open.Handle)

	_, err = t.fs.FlushFile(&fs.FlushFileRequest{Inode: id})
	AssertEq(nil, err)
	_, err = t.fs.ReleaseFileHandle(&fs.ReleaseFileHandleRequest{})
	AssertEq(nil, err)
}

func (t *FileSystemTest) SetInodeAttributesTruncates() {
	id := t.mknod(inode.RootID, "f")
	t.fs.OpenFile(&fs.OpenFileRequest{Inode: id})
	t.fs.WriteFile(&fs.WriteFileRequest{Inode: id, Data: []byte("hello")})

	size := uint64(2)
	resp, err := t.fs.SetInodeAttributes(&fs.SetInodeAttributesRequest{Inode: id, Size: &size})
	AssertEq(nil, err)
	ExpectEq(uint64(2), resp.Entry.Size)
}

func (t *FileSystemTest) ReadDirListsEntriesInOrder() {
	t.mkdir(inode.RootID, "b")
	t.mkdir(inode.RootID, "a")

	open, err := t.fs.OpenDir(&fs.OpenDirRequest{Inode: inode.RootID})
	AssertEq(nil, err)

	resp, err := t.fs.ReadDir(&fs.ReadDirRequest{Inode: inode.RootID, Handle: open.Handle, Offset: 0})
	AssertEq(nil, err)
	AssertEq(2, len(resp.Entries))
	ExpectEq("a", resp.Entries[0].Name)
	ExpectEq("b", resp.Entries[1].Name)
}

func (t *FileSystemTest) ReadDirListingIsStableAcrossRepeatedOpens() {
	t.mkdir(inode.RootID, "b")
	t.mkdir(inode.RootID, "a")

	listing := func() []fs.Dirent {
		open, err := t.fs.OpenDir(&fs.OpenDirRequest{Inode: inode.RootID})
		AssertEq(nil, err)
		resp, err := t.fs.ReadDir(&fs.ReadDirRequest{Inode: inode.RootID, Handle: open.Handle})
		AssertEq(nil, err)
		return resp.Entries
	}

	before := listing()
	after := listing()
	ExpectEq("", pretty.Compare(before, after))
}
