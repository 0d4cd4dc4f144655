package fs

import "github.com/jacobsa/memfused/inode"

// Rename moves or renames a directory entry, matching the semantics of
// the POSIX rename(2) call. Two deviations from original_source are
// mandated here: it must reject moving a directory into its own
// descendant, and it must acquire its node locks in ascending inode-ID
// order rather than olddir-then-newdir order, so that two renames in
// opposite directions between the same pair of directories can never
// deadlock against each other.
func (fs *FileSystem) Rename(req *RenameRequest) (*RenameResponse, error) {
	if req.Flags != 0 {
		return nil, inode.ErrInvalidInput("rename flags %d are not supported", req.Flags)
	}

	oldParent, err := fs.table.Load(req.OldParent)
	if err != nil {
		return nil, err
	}
	newParent, err := fs.table.Load(req.NewParent)
	if err != nil {
		return nil, err
	}

	unlock := lockNodes(oldParent, newParent)
	defer unlock()

	if !oldParent.IsDir() || !newParent.IsDir() {
		return nil, inode.ErrNotADirectory("rename requires directory parents")
	}

	moved, ok := oldParent.Dir().Lookup(req.OldName)
	if !ok {
		return nil, inode.ErrNotFound("no entry named %q in directory %d", req.OldName, req.OldParent)
	}

	if moved.Kind == inode.KindDirNode {
		if moved.Inode == req.NewParent {
			return nil, inode.ErrInvalidInput("cannot move a directory into itself")
		}
		isDesc, err := fs.isDescendant(moved.Inode, req.NewParent)
		if err != nil {
			return nil, err
		}
		if isDesc {
			return nil, inode.ErrInvalidInput("cannot move a directory into its own descendant")
		}
	}

	existing, exists := newParent.Dir().Lookup(req.NewName)
	if exists {
		if existing.Inode == moved.Inode {
			// Renaming onto the same inode under the same name: no-op.
			return &RenameResponse{}, nil
		}
		if err := fs.prepareOverwrite(existing, moved); err != nil {
			return nil, err
		}
	}

	oldParent.Dir().Remove(req.OldName)
	newParent.Dir().Remove(req.NewName)
	newParent.Dir().Add(inode.DirEntry{Name: req.NewName, Inode: moved.Inode, Kind: moved.Kind})

	now := fs.clock.Now()
	oldParent.Attr.Mtime = now
	newParent.Attr.Mtime = now

	if exists {
		if err := fs.table.Remove(existing.Inode); err != nil {
			return nil, err
		}
	}

	return &RenameResponse{}, nil
}

// prepareOverwrite validates that replacing existing with moved is legal
// POSIX rename behavior: a directory can only replace an empty directory,
// and a non-directory can only replace a non-directory.
func (fs *FileSystem) prepareOverwrite(existing, moved inode.DirEntry) error {
	if existing.Kind == inode.KindDirNode && moved.Kind != inode.KindDirNode {
		return inode.ErrIsADirectory("cannot replace directory with non-directory")
	}
	if existing.Kind != inode.KindDirNode && moved.Kind == inode.KindDirNode {
		return inode.ErrNotADirectory("cannot replace non-directory with directory")
	}

	if existing.Kind == inode.KindDirNode {
		existingNode, err := fs.table.Load(existing.Inode)
		if err != nil {
			return err
		}
		existingNode.Lock()
		empty := existingNode.Dir().Len() == 0
		existingNode.Unlock()
		if !empty {
			return inode.ErrNotEmpty("destination directory is not empty")
		}
	}

	return nil
}

// isDescendant reports whether target is rootID itself or lies anywhere
// beneath it in the directory tree, by walking down from rootID. It
// acquires at most one node's RLock at a time, so it cannot deadlock
// against the ascending-order locks rename already holds on the parent
// directories.
func (fs *FileSystem) isDescendant(rootID, target uint64) (bool, error) {
	if rootID == target {
		return true, nil
	}

	queue := []uint64{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		n, err := fs.table.Load(id)
		if err != nil {
			continue
		}

		n.RLock()
		if !n.IsDir() {
			n.RUnlock()
			continue
		}
		children := n.Dir().Entries()
		n.RUnlock()

		for _, c := range children {
			if c.Inode == target {
				return true, nil
			}
			if c.Kind == inode.KindDirNode {
				queue = append(queue, c.Inode)
			}
		}
	}

	return false, nil
}
