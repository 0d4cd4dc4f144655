// Package fuseadapter bridges this module's fs.FileSystem dispatcher to
// the real github.com/jacobsa/fuse transport library's Op-based
// fuseutil.FileSystem contract, so that cmd/memfsd can hand the result
// straight to fuseutil.NewFileSystemServer and fuse.Mount without this
// module ever reimplementing kernel protocol framing.
//
// One gap versus the upstream contract is documented here rather than
// guessed at: the confirmed fuseutil.FileSystem interface has no Rename
// method, so a rename(2) issued through this adapter is not yet reachable
// from a real mount even though fs.FileSystem.Rename is fully implemented
// and tested directly. See DESIGN.md.
package fuseadapter

import (
	"log"
	"os"
	"syscall"
	"time"
	"unsafe"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/jacobsa/memfused/fs"
	"github.com/jacobsa/memfused/inode"
	"github.com/jacobsa/memfused/metrics"
)

// Adapter implements fuseutil.FileSystem by delegating ops to an
// underlying fs.FileSystem, converting its inode.Error results to the
// syscall.Errno the kernel expects and running the metrics begin/end hook
// around each call. ForgetInode, SyncFile, ReleaseDirHandle and
// ReleaseFileHandle respond with success directly and are not metered. The
// metered ops apply the same begin/end/log pattern as
// fs.Session (see fs/loop.go), inlined per Op method rather than driven
// through an fs.OpSource, since the real mount's dispatch loop belongs to
// github.com/jacobsa/fuse, not to this module.
type Adapter struct {
	fuseutil.NotImplementedFileSystem // CreateSymlink, ReadSymlink: non-goals

	FS     *fs.FileSystem
	Hook   *metrics.Hook
	Logger *log.Logger // optional; per-op errors are logged when set
}

// New builds an Adapter over fsys, instrumented with hook. logger may be
// nil to disable per-op error logging.
func New(fsys *fs.FileSystem, hook *metrics.Hook, logger *log.Logger) *Adapter {
	return &Adapter{FS: fsys, Hook: hook, Logger: logger}
}

// finish ends the metrics span for opName, logs err (if non-nil and a
// Logger is set) and returns the syscall.Errno to respond with.
func (a *Adapter) finish(opName string, end func(error), err error) error {
	end(err)
	if err != nil && a.Logger != nil {
		a.Logger.Printf("%s: %v", opName, err)
	}
	return errno(err)
}

// errno translates an fs/inode error to the syscall.Errno the kernel
// expects, per SPEC_FULL.md's error-kind table. Kinds the fuse package
// exports a ready-made sentinel for (ENOENT, ENOTEMPTY, EIO) use that
// sentinel directly; the rest are returned as plain syscall.Errno values,
// which already implement error and are handled identically by the
// kernel-facing side of the transport.
func errno(err error) error {
	if err == nil {
		return nil
	}
	kind, ok := inode.KindOf(err)
	if !ok {
		return fuse.EIO
	}
	switch kind {
	case inode.KindNotFound:
		return fuse.ENOENT
	case inode.KindNotADirectory:
		return syscall.ENOTDIR
	case inode.KindIsADirectory:
		return syscall.EISDIR
	case inode.KindAlreadyExists:
		return syscall.EEXIST
	case inode.KindNotEmpty:
		return fuse.ENOTEMPTY
	case inode.KindInvalidInput:
		return syscall.EINVAL
	default:
		return fuse.EIO
	}
}

func zeroTimePlus(d time.Duration) time.Time {
	return time.Now().Add(d)
}

// encodeDirents serializes entries into the fuse_dirent wire format
// fuseops.ReadDirOp.Data expects, stopping once the next entry would
// exceed limit bytes. This mirrors fuseutil.WriteDirent's layout, adapted
// to this module's own Dirent type since the retrieval pack's snapshot of
// fuseops/fuseutil disagrees with itself about which package owns Dirent.
func encodeDirents(entries []fs.Dirent, limit int) []byte {
	type fuseDirent struct {
		ino     uint64
		off     uint64
		namelen uint32
		typ     uint32
	}
	const direntAlignment = 8
	const direntSize = 8 + 8 + 4 + 4

	buf := make([]byte, 0, limit)
	for _, e := range entries {
		var padLen int
		if len(e.Name)%direntAlignment != 0 {
			padLen = direntAlignment - (len(e.Name) % direntAlignment)
		}
		total := direntSize + len(e.Name) + padLen
		if len(buf)+total > limit {
			break
		}

		typ := uint32(syscall.DT_REG)
		if e.Type == fs.DT_Dir {
			typ = syscall.DT_DIR
		}
		d := fuseDirent{
			ino:     e.Inode,
			off:     uint64(e.Offset),
			namelen: uint32(len(e.Name)),
			typ:     typ,
		}

		buf = append(buf, (*[direntSize]byte)(unsafe.Pointer(&d))[:]...)
		buf = append(buf, e.Name...)
		if padLen != 0 {
			buf = append(buf, make([]byte, padLen)...)
		}
	}

	return buf
}

func toAttr(a inode.Attr, size uint64, nlink uint32) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  size,
		Nlink: uint64(nlink),
		Mode:  os.FileMode(a.Mode),
		Atime: a.Atime,
		Mtime: a.Mtime,
		Ctime: a.Ctime,
		Uid:   a.UID,
		Gid:   a.GID,
	}
}

func toEntry(e inode.Entry) fuseops.ChildInodeEntry {
	mode := os.FileMode(e.Attr.Mode)
	if e.Kind == inode.KindDirNode {
		mode |= os.ModeDir
	}
	attr := toAttr(e.Attr, e.Size, e.Nlink)
	attr.Mode = mode

	return fuseops.ChildInodeEntry{
		Child:                fuseops.InodeID(e.Inode),
		Generation:           fuseops.GenerationNumber(e.Generation),
		Attributes:           attr,
		AttributesExpiration: zeroTimePlus(e.AttrTimeout),
		EntryExpiration:      zeroTimePlus(e.EntryTimeout),
	}
}

func (a *Adapter) Init(op *fuseops.InitOp) {
	end := a.Hook.Begin("init")
	_, err := a.FS.Init(&fs.InitRequest{})
	op.Respond(a.finish("init", end, err))
}

func (a *Adapter) LookUpInode(op *fuseops.LookUpInodeOp) {
	end := a.Hook.Begin("lookup")
	resp, err := a.FS.LookUpInode(&fs.LookUpInodeRequest{
		Header: fs.Header{UID: op.Header.Uid, GID: op.Header.Gid},
		Parent: uint64(op.Parent),
		Name:   op.Name,
	})
	if err == nil {
		op.Entry = toEntry(resp.Entry)
	}
	op.Respond(a.finish("lookup", end, err))
}

func (a *Adapter) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) {
	end := a.Hook.Begin("getattr")
	resp, err := a.FS.GetInodeAttributes(&fs.GetInodeAttributesRequest{Inode: uint64(op.Inode)})
	if err == nil {
		op.Attributes = toAttr(resp.Entry.Attr, resp.Entry.Size, resp.Entry.Nlink)
		op.AttributesExpiration = zeroTimePlus(resp.Entry.AttrTimeout)
	}
	op.Respond(a.finish("getattr", end, err))
}

func (a *Adapter) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) {
	end := a.Hook.Begin("setattr")
	req := &fs.SetInodeAttributesRequest{
		Inode: uint64(op.Inode),
		Size:  op.Size,
		Atime: op.Atime,
		Mtime: op.Mtime,
	}
	if op.Mode != nil {
		m := uint32(*op.Mode)
		req.Mode = &m
	}
	resp, err := a.FS.SetInodeAttributes(req)
	if err == nil {
		op.Attributes = toAttr(resp.Entry.Attr, resp.Entry.Size, resp.Entry.Nlink)
		op.AttributesExpiration = zeroTimePlus(resp.Entry.AttrTimeout)
	}
	op.Respond(a.finish("setattr", end, err))
}

func (a *Adapter) ForgetInode(op *fuseops.ForgetInodeOp) {
	op.Respond(nil)
}

func (a *Adapter) MkDir(op *fuseops.MkDirOp) {
	end := a.Hook.Begin("mkdir")
	resp, err := a.FS.MkDir(&fs.MkDirRequest{
		Header: fs.Header{UID: op.Header.Uid, GID: op.Header.Gid},
		Parent: uint64(op.Parent),
		Name:   op.Name,
		Mode:   uint32(op.Mode),
	})
	if err == nil {
		op.Entry = toEntry(resp.Entry)
	}
	op.Respond(a.finish("mkdir", end, err))
}

func (a *Adapter) CreateFile(op *fuseops.CreateFileOp) {
	end := a.Hook.Begin("mknod")
	resp, err := a.FS.Mknod(&fs.MknodRequest{
		Header: fs.Header{UID: op.Header.Uid, GID: op.Header.Gid},
		Parent: uint64(op.Parent),
		Name:   op.Name,
		Mode:   uint32(op.Mode),
	})
	if err == nil {
		op.Entry = toEntry(resp.Entry)
		// OpenFile is stateless (spec.md §4.3): it fails only if the new
		// inode was already removed by a concurrent unlink, in which case
		// no handle is set and the create itself still succeeds.
		if open, openErr := a.FS.OpenFile(&fs.OpenFileRequest{Inode: resp.Entry.Inode}); openErr == nil {
			op.Handle = fuseops.HandleID(open.Handle)
		}
	}
	op.Respond(a.finish("mknod", end, err))
}

func (a *Adapter) RmDir(op *fuseops.RmDirOp) {
	end := a.Hook.Begin("rmdir")
	_, err := a.FS.RmDir(&fs.RmDirRequest{Parent: uint64(op.Parent), Name: op.Name})
	op.Respond(a.finish("rmdir", end, err))
}

func (a *Adapter) Unlink(op *fuseops.UnlinkOp) {
	end := a.Hook.Begin("unlink")
	_, err := a.FS.Unlink(&fs.UnlinkRequest{Parent: uint64(op.Parent), Name: op.Name})
	op.Respond(a.finish("unlink", end, err))
}

func (a *Adapter) OpenDir(op *fuseops.OpenDirOp) {
	end := a.Hook.Begin("opendir")
	resp, err := a.FS.OpenDir(&fs.OpenDirRequest{Inode: uint64(op.Inode)})
	if err == nil {
		op.Handle = fuseops.HandleID(resp.Handle)
	}
	op.Respond(a.finish("opendir", end, err))
}

func (a *Adapter) ReadDir(op *fuseops.ReadDirOp) {
	end := a.Hook.Begin("readdir")
	resp, err := a.FS.ReadDir(&fs.ReadDirRequest{
		Inode:  uint64(op.Inode),
		Handle: uint64(op.Handle),
		Offset: int(op.Offset),
	})
	if err == nil {
		op.Data = encodeDirents(resp.Entries, op.Size)
	}
	op.Respond(a.finish("readdir", end, err))
}

func (a *Adapter) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) {
	a.FS.ReleaseDirHandle(&fs.ReleaseDirHandleRequest{Handle: uint64(op.Handle)})
	op.Respond(nil)
}

func (a *Adapter) OpenFile(op *fuseops.OpenFileOp) {
	end := a.Hook.Begin("open")
	resp, err := a.FS.OpenFile(&fs.OpenFileRequest{Inode: uint64(op.Inode)})
	if err == nil {
		op.Handle = fuseops.HandleID(resp.Handle)
	}
	op.Respond(a.finish("open", end, err))
}

// ReadFile ignores op.Handle: file I/O is addressed by inode, not by a
// per-open handle (spec.md §4.3; see fs/handles.go).
func (a *Adapter) ReadFile(op *fuseops.ReadFileOp) {
	end := a.Hook.Begin("read")
	resp, err := a.FS.ReadFile(&fs.ReadFileRequest{
		Inode:  uint64(op.Inode),
		Offset: op.Offset,
		Size:   op.Size,
	})
	if err == nil {
		op.Data = resp.Data
	}
	op.Respond(a.finish("read", end, err))
}

// WriteFile ignores op.Handle; see ReadFile.
func (a *Adapter) WriteFile(op *fuseops.WriteFileOp) {
	end := a.Hook.Begin("write")
	_, err := a.FS.WriteFile(&fs.WriteFileRequest{
		Inode:  uint64(op.Inode),
		Offset: op.Offset,
		Data:   op.Data,
	})
	op.Respond(a.finish("write", end, err))
}

func (a *Adapter) SyncFile(op *fuseops.SyncFileOp) {
	op.Respond(nil)
}

func (a *Adapter) FlushFile(op *fuseops.FlushFileOp) {
	end := a.Hook.Begin("flush")
	_, err := a.FS.FlushFile(&fs.FlushFileRequest{Inode: uint64(op.Inode)})
	op.Respond(a.finish("flush", end, err))
}

func (a *Adapter) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) {
	op.Respond(nil)
}
