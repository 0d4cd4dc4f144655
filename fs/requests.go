// Package fs implements the Operation Dispatcher: the set of filesystem
// operations a FUSE kernel driver issues, applied against an in-memory
// inode.Table. Request and Response types here are modeled on
// github.com/jacobsa/fuse's own FileSystem contract, generalized with the
// handful of operations (Rename, a Mknod distinct from CreateFile) that
// contract does not expose in the snapshot this module was built against;
// fuseadapter bridges the two.
package fs

import (
	"time"

	"github.com/jacobsa/memfused/inode"
)

// Header carries the calling context common to every request: the user and
// group issuing it. Permission enforcement against Header is a non-goal;
// it is threaded through purely so created nodes are owned correctly.
type Header struct {
	UID uint32
	GID uint32
}

type InitRequest struct{}

type InitResponse struct{}

type LookUpInodeRequest struct {
	Header Header
	Parent uint64
	Name   string
}

type LookUpInodeResponse struct {
	Entry inode.Entry
}

type GetInodeAttributesRequest struct {
	Inode uint64
}

type GetInodeAttributesResponse struct {
	Entry inode.Entry
}

// SetInodeAttributesRequest carries only the fields the caller wants
// changed; nil means "leave as-is", matching fuseops.SetInodeAttributesOp's
// pointer fields.
type SetInodeAttributesRequest struct {
	Inode uint64
	Size  *uint64
	Mode  *uint32
	Atime *time.Time
	Mtime *time.Time
}

type SetInodeAttributesResponse struct {
	Entry inode.Entry
}

type MkDirRequest struct {
	Header Header
	Parent uint64
	Name   string
	Mode   uint32
}

type MkDirResponse struct {
	Entry inode.Entry
}

type MknodRequest struct {
	Header Header
	Parent uint64
	Name   string
	Mode   uint32
}

type MknodResponse struct {
	Entry inode.Entry
}

type RmDirRequest struct {
	Parent uint64
	Name   string
}

type RmDirResponse struct{}

type UnlinkRequest struct {
	Parent uint64
	Name   string
}

type UnlinkResponse struct{}

// RenameFlags mirrors the renameat2(2) flag bits spec.md §4.3 calls out:
// RENAME_EXCHANGE and RENAME_NOREPLACE are parsed as part of the request
// but neither is implemented, so any non-zero Flags is rejected with
// InvalidInput rather than silently falling back to plain overwrite-
// rename. Zero (no flags) is the only supported value.
type RenameFlags uint32

const (
	RenameExchange  RenameFlags = 1 << 0
	RenameNoReplace RenameFlags = 1 << 1
)

type RenameRequest struct {
	OldParent uint64
	OldName   string
	NewParent uint64
	NewName   string
	Flags     RenameFlags
}

type RenameResponse struct{}

type OpenFileRequest struct {
	Inode uint64
}

// OpenFileResponse.Handle is always noFileHandle: open is stateless
// (spec.md §4.3, "no per-file open table is kept"; file I/O is addressed
// by inode), so there is no real per-open state for a handle to name.
type OpenFileResponse struct {
	Handle uint64
}

type ReadFileRequest struct {
	Inode  uint64
	Offset int64
	Size   int
}

type ReadFileResponse struct {
	Data []byte
}

type WriteFileRequest struct {
	Inode  uint64
	Offset int64
	Data   []byte
}

type WriteFileResponse struct {
	Size int
}

// FlushFileRequest/ReleaseFileHandleRequest exist only so the dispatcher's
// method set matches every op spec.md names; both are pure no-ops (no
// write-back cache or open-file state exists to act on).
type FlushFileRequest struct {
	Inode uint64
}

type FlushFileResponse struct{}

type ReleaseFileHandleRequest struct {
	Handle uint64
}

type ReleaseFileHandleResponse struct{}

type OpenDirRequest struct {
	Inode uint64
}

type OpenDirResponse struct {
	Handle uint64
}

type ReadDirRequest struct {
	Inode  uint64
	Handle uint64
	Offset int
}

type DirentType int

const (
	DT_File DirentType = iota
	DT_Dir
)

type Dirent struct {
	Name   string
	Inode  uint64
	Type   DirentType
	Offset int
}

type ReadDirResponse struct {
	Entries []Dirent
}

type ReleaseDirHandleRequest struct {
	Handle uint64
}

type ReleaseDirHandleResponse struct{}
