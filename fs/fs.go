package fs

import (
	"sort"

	"github.com/jacobsa/memfused/inode"
	"github.com/jacobsa/timeutil"
)

// FileSystem is the Operation Dispatcher: it holds the in-memory inode
// table and translates each FUSE kernel operation into table/node
// operations under the two-level locking discipline described in
// SPEC_FULL.md -- a node's own lock guards its attributes and, for a
// directory, its entries; a file's content has an inner lock of its own so
// that a large read or write never holds the node lock (getattr reads the
// file length under the content lock, so it can wait for a write).
//
// Safe for concurrent use by multiple goroutines, as required of any
// github.com/jacobsa/fuse.FileSystem implementation.
type FileSystem struct {
	table   *inode.Table
	clock   timeutil.Clock
	handles *handleTable
}

// New builds a FileSystem with only the root directory present, owned by
// rootUID/rootGID.
func New(clock timeutil.Clock, rootUID, rootGID uint32) *FileSystem {
	return &FileSystem{
		table:   inode.NewTable(clock, rootUID, rootGID),
		clock:   clock,
		handles: newHandleTable(),
	}
}

func (fs *FileSystem) Init(req *InitRequest) (*InitResponse, error) {
	return &InitResponse{}, nil
}

// lockNodes locks any number of distinct nodes for writing in ascending
// inode-ID order, which is what makes concurrent operations that each need
// more than one node (notably Rename) safe from deadlock against each
// other. Duplicate nodes (by ID) are locked only once.
func lockNodes(nodes ...*inode.Node) (unlock func()) {
	uniq := make([]*inode.Node, 0, len(nodes))
	seen := make(map[uint64]bool, len(nodes))
	for _, n := range nodes {
		if n == nil || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		uniq = append(uniq, n)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].ID < uniq[j].ID })

	for _, n := range uniq {
		n.Lock()
	}
	return func() {
		for i := len(uniq) - 1; i >= 0; i-- {
			uniq[i].Unlock()
		}
	}
}

func (fs *FileSystem) LookUpInode(req *LookUpInodeRequest) (*LookUpInodeResponse, error) {
	parent, err := fs.table.Load(req.Parent)
	if err != nil {
		return nil, err
	}

	parent.RLock()
	if !parent.IsDir() {
		parent.RUnlock()
		return nil, inode.ErrNotADirectory("inode %d is not a directory", req.Parent)
	}
	e, ok := parent.Dir().Lookup(req.Name)
	parent.RUnlock()

	if !ok {
		return nil, inode.ErrNotFound("no entry named %q in directory %d", req.Name, req.Parent)
	}

	child, err := fs.table.Load(e.Inode)
	if err != nil {
		return nil, err
	}

	child.RLock()
	entry := inode.BuildEntry(child)
	child.RUnlock()

	return &LookUpInodeResponse{Entry: entry}, nil
}

func (fs *FileSystem) GetInodeAttributes(req *GetInodeAttributesRequest) (*GetInodeAttributesResponse, error) {
	n, err := fs.table.Load(req.Inode)
	if err != nil {
		return nil, err
	}

	n.RLock()
	entry := inode.BuildEntry(n)
	n.RUnlock()

	return &GetInodeAttributesResponse{Entry: entry}, nil
}

func (fs *FileSystem) SetInodeAttributes(req *SetInodeAttributesRequest) (*SetInodeAttributesResponse, error) {
	n, err := fs.table.Load(req.Inode)
	if err != nil {
		return nil, err
	}

	if req.Size != nil {
		if n.IsDir() {
			return nil, inode.ErrIsADirectory("cannot resize directory %d", req.Inode)
		}
		n.File().Truncate(int64(*req.Size))
	}

	n.Lock()
	if req.Mode != nil {
		n.Attr.Mode = *req.Mode
	}
	if req.Atime != nil {
		n.Attr.Atime = *req.Atime
	}
	if req.Mtime != nil {
		n.Attr.Mtime = *req.Mtime
	}
	n.Attr.Ctime = fs.clock.Now()
	entry := inode.BuildEntry(n)
	n.Unlock()

	return &SetInodeAttributesResponse{Entry: entry}, nil
}

func (fs *FileSystem) create(parentID uint64, name string, kind inode.Kind, mode uint32, hdr Header) (*inode.Node, error) {
	parent, err := fs.table.Load(parentID)
	if err != nil {
		return nil, err
	}

	parent.Lock()
	defer parent.Unlock()

	if !parent.IsDir() {
		return nil, inode.ErrNotADirectory("inode %d is not a directory", parentID)
	}
	if _, exists := parent.Dir().Lookup(name); exists {
		return nil, inode.ErrAlreadyExists("%q already exists in directory %d", name, parentID)
	}

	child := fs.table.Allocate(kind, mode, hdr.UID, hdr.GID)
	parent.Dir().Add(inode.DirEntry{Name: name, Inode: child.ID, Kind: kind})
	parent.Attr.Mtime = fs.clock.Now()

	return child, nil
}

func (fs *FileSystem) MkDir(req *MkDirRequest) (*MkDirResponse, error) {
	child, err := fs.create(req.Parent, req.Name, inode.KindDirNode, req.Mode, req.Header)
	if err != nil {
		return nil, err
	}

	child.RLock()
	entry := inode.BuildEntry(child)
	child.RUnlock()

	return &MkDirResponse{Entry: entry}, nil
}

// Mknod creates a regular file without opening it, matching
// SPEC_FULL.md's zero-message-open convention: callers issue a separate
// OpenFile if they need a handle.
func (fs *FileSystem) Mknod(req *MknodRequest) (*MknodResponse, error) {
	child, err := fs.create(req.Parent, req.Name, inode.KindFileNode, req.Mode, req.Header)
	if err != nil {
		return nil, err
	}

	child.RLock()
	entry := inode.BuildEntry(child)
	child.RUnlock()

	return &MknodResponse{Entry: entry}, nil
}

func (fs *FileSystem) RmDir(req *RmDirRequest) (*RmDirResponse, error) {
	parent, err := fs.table.Load(req.Parent)
	if err != nil {
		return nil, err
	}

	parent.Lock()
	defer parent.Unlock()

	if !parent.IsDir() {
		return nil, inode.ErrNotADirectory("inode %d is not a directory", req.Parent)
	}
	e, ok := parent.Dir().Lookup(req.Name)
	if !ok {
		return nil, inode.ErrNotFound("no entry named %q in directory %d", req.Name, req.Parent)
	}
	if e.Kind != inode.KindDirNode {
		return nil, inode.ErrNotADirectory("%q is not a directory", req.Name)
	}

	child, err := fs.table.Load(e.Inode)
	if err != nil {
		return nil, err
	}

	child.Lock()
	empty := child.Dir().Len() == 0
	child.Unlock()

	if !empty {
		return nil, inode.ErrNotEmpty("directory %q is not empty", req.Name)
	}

	parent.Dir().Remove(req.Name)
	parent.Attr.Mtime = fs.clock.Now()

	if err := fs.table.Remove(child.ID); err != nil {
		return nil, err
	}

	return &RmDirResponse{}, nil
}

func (fs *FileSystem) Unlink(req *UnlinkRequest) (*UnlinkResponse, error) {
	parent, err := fs.table.Load(req.Parent)
	if err != nil {
		return nil, err
	}

	parent.Lock()
	defer parent.Unlock()

	if !parent.IsDir() {
		return nil, inode.ErrNotADirectory("inode %d is not a directory", req.Parent)
	}
	e, ok := parent.Dir().Lookup(req.Name)
	if !ok {
		return nil, inode.ErrNotFound("no entry named %q in directory %d", req.Name, req.Parent)
	}
	if e.Kind == inode.KindDirNode {
		return nil, inode.ErrIsADirectory("%q is a directory", req.Name)
	}

	parent.Dir().Remove(req.Name)
	parent.Attr.Mtime = fs.clock.Now()

	if err := fs.table.Remove(e.Inode); err != nil {
		return nil, err
	}

	return &UnlinkResponse{}, nil
}

// noFileHandle is the fixed value every OpenFile call returns: open keeps
// no per-file state (spec.md §4.3), so there is nothing a real handle
// would need to identify.
const noFileHandle = 0

func (fs *FileSystem) OpenFile(req *OpenFileRequest) (*OpenFileResponse, error) {
	n, err := fs.table.Load(req.Inode)
	if err != nil {
		return nil, err
	}
	n.RLock()
	isDir := n.IsDir()
	n.RUnlock()
	if isDir {
		return nil, inode.ErrIsADirectory("inode %d is a directory", req.Inode)
	}

	return &OpenFileResponse{Handle: noFileHandle}, nil
}

func (fs *FileSystem) ReadFile(req *ReadFileRequest) (*ReadFileResponse, error) {
	n, err := fs.table.Load(req.Inode)
	if err != nil {
		return nil, err
	}

	n.RLock()
	isDir := n.IsDir()
	n.RUnlock()
	if isDir {
		return nil, inode.ErrIsADirectory("inode %d is a directory", req.Inode)
	}

	buf := make([]byte, req.Size)
	nRead := n.File().ReadAt(buf, req.Offset)

	n.Lock()
	n.Attr.Atime = fs.clock.Now()
	n.Unlock()

	return &ReadFileResponse{Data: buf[:nRead]}, nil
}

func (fs *FileSystem) WriteFile(req *WriteFileRequest) (*WriteFileResponse, error) {
	n, err := fs.table.Load(req.Inode)
	if err != nil {
		return nil, err
	}

	n.RLock()
	isDir := n.IsDir()
	n.RUnlock()
	if isDir {
		return nil, inode.ErrIsADirectory("inode %d is a directory", req.Inode)
	}

	written := n.File().WriteAt(req.Data, req.Offset)

	n.Lock()
	now := fs.clock.Now()
	n.Attr.Mtime = now
	n.Attr.Ctime = now
	n.Unlock()

	return &WriteFileResponse{Size: written}, nil
}

// FlushFile is a pure no-op: content is always resident and durable for
// the lifetime of the process, so there is no write-back cache to flush
// (spec.md §4.3).
func (fs *FileSystem) FlushFile(req *FlushFileRequest) (*FlushFileResponse, error) {
	return &FlushFileResponse{}, nil
}

// ReleaseFileHandle is a pure no-op: no open-file state exists to release
// (spec.md §4.3).
func (fs *FileSystem) ReleaseFileHandle(req *ReleaseFileHandleRequest) (*ReleaseFileHandleResponse, error) {
	return &ReleaseFileHandleResponse{}, nil
}

func (fs *FileSystem) OpenDir(req *OpenDirRequest) (*OpenDirResponse, error) {
	n, err := fs.table.Load(req.Inode)
	if err != nil {
		return nil, err
	}

	n.RLock()
	if !n.IsDir() {
		n.RUnlock()
		return nil, inode.ErrNotADirectory("inode %d is not a directory", req.Inode)
	}
	raw := n.Dir().Entries()
	n.RUnlock()

	entries := make([]Dirent, len(raw))
	for i, e := range raw {
		t := DT_File
		if e.Kind == inode.KindDirNode {
			t = DT_Dir
		}
		entries[i] = Dirent{Name: e.Name, Inode: e.Inode, Type: t, Offset: i + 1}
	}

	handle := fs.handles.openDir(req.Inode, entries)
	return &OpenDirResponse{Handle: handle}, nil
}

func (fs *FileSystem) ReadDir(req *ReadDirRequest) (*ReadDirResponse, error) {
	entries, ok := fs.handles.dirEntries(req.Handle)
	if !ok {
		return nil, inode.ErrNotFound("no such directory handle %d", req.Handle)
	}

	if req.Offset >= len(entries) {
		return &ReadDirResponse{}, nil
	}
	return &ReadDirResponse{Entries: entries[req.Offset:]}, nil
}

func (fs *FileSystem) ReleaseDirHandle(req *ReleaseDirHandleRequest) (*ReleaseDirHandleResponse, error) {
	fs.handles.releaseDir(req.Handle)
	return &ReleaseDirHandleResponse{}, nil
}
