package fs

import (
	"github.com/tchajed/xv6fs/common"
	"github.com/tchajed/xv6fs/dirent"
	"github.com/tchajed/xv6fs/inode"
	resolve "github.com/tchajed/xv6fs/path"
)

// createLocked implements the shared body of Create, Symlink and
// Open(O_CREATE): it assumes the caller already opened a log transaction
// (spec.md §4.I, "create"). On success it returns ip locked; on failure
// it has touched no on-disk state beyond what a concurrent lookup could
// already observe.
func createLocked(fs *FS, p *Proc, path string, typ common.Itype, major, minor uint64) (*inode.Inode, error) {
	c := fs.cache

	dp, name, err := resolve.NameiParent(c, fs.root, p.Cwd, path)
	if err != nil {
		return nil, err
	}
	c.Ilock(dp)

	if existing, _, err := dirent.Dirlookup(c, dp, name); err == nil {
		c.Ilock(existing)
		if typ == common.T_FILE && (existing.Type == common.T_FILE || existing.Type == common.T_DEVICE) {
			c.Iunlock(dp)
			c.Iput(dp)
			return existing, nil
		}
		c.IunlockPut(existing)
		c.IunlockPut(dp)
		return nil, common.ErrExist
	}

	inum := c.Ialloc(typ)
	ip := c.Iget(inum)
	c.Ilock(ip)
	ip.Major = major
	ip.Minor = minor
	ip.Nlink = 1
	c.Iupdate(ip)

	if typ == common.T_DIR {
		// The new directory's own "." does not count toward its nlink:
		// doing so would create a 1-reference cycle that iput could never
		// break (spec.md §9, "Reference cycles").
		dp.Nlink++
		c.Iupdate(dp)
		if err := dirent.Dirlink(c, ip, ".", inum); err != nil {
			panic("fs: create: dirlink '.' failed after validation")
		}
		if err := dirent.Dirlink(c, ip, "..", dp.Inum); err != nil {
			panic("fs: create: dirlink '..' failed after validation")
		}
	}

	if err := dirent.Dirlink(c, dp, name, inum); err != nil {
		panic("fs: create: dirlink failed after validation")
	}

	c.Iunlock(dp)
	c.Iput(dp)
	return ip, nil
}

// Create resolves path's parent and either returns an existing regular
// file/device there (if typ == T_FILE) or allocates a fresh inode of
// type typ and links it in under the final component. Returns the new
// or existing inode, locked.
func (fs *FS) Create(p *Proc, path string, typ common.Itype, major, minor uint64) (*inode.Inode, error) {
	fs.log.BeginOp()
	defer fs.log.EndOp()
	return createLocked(fs, p, path, typ, major, minor)
}

// Mkdir creates an empty directory at path.
func (fs *FS) Mkdir(p *Proc, path string) error {
	ip, err := fs.Create(p, path, common.T_DIR, 0, 0)
	if err != nil {
		return err
	}
	fs.cache.IunlockPut(ip)
	return nil
}

// Mknod creates a device special file at path with the given major and
// minor numbers (spec.md §3's T_DEVICE, exposed as its own operation
// the way sys_mknod does over the shared create path).
func (fs *FS) Mknod(p *Proc, path string, major, minor uint64) error {
	ip, err := fs.Create(p, path, common.T_DEVICE, major, minor)
	if err != nil {
		return err
	}
	fs.cache.IunlockPut(ip)
	return nil
}

// Symlink creates a symlink at path whose target is the given string,
// truncated to MAXPATH-1 bytes if necessary (spec.md §4.I).
func (fs *FS) Symlink(p *Proc, target, path string) error {
	fs.log.BeginOp()
	defer fs.log.EndOp()

	ip, err := createLocked(fs, p, path, common.T_SYMLINK, 0, 0)
	if err != nil {
		return err
	}
	if len(target) > common.MAXPATH-1 {
		target = target[:common.MAXPATH-1]
	}
	ip.Target = target
	fs.cache.Iupdate(ip)
	fs.cache.IunlockPut(ip)
	return nil
}

// Link adds newpath as an additional name for the file at oldpath.
// Directories may not be hard-linked (spec.md §4.I scenario 4). If
// dirlink under newpath fails after the link count was bumped, the bump
// is rolled back before the transaction closes.
func (fs *FS) Link(p *Proc, oldpath, newpath string) error {
	c := fs.cache
	fs.log.BeginOp()
	defer fs.log.EndOp()

	ip, err := resolve.Namei(c, fs.root, p.Cwd, oldpath)
	if err != nil {
		return err
	}
	c.Ilock(ip)
	if ip.Type == common.T_DIR {
		c.IunlockPut(ip)
		return common.ErrIsDir
	}
	ip.Nlink++
	c.Iupdate(ip)
	c.Iunlock(ip)

	dp, name, err := resolve.NameiParent(c, fs.root, p.Cwd, newpath)
	if err != nil {
		c.Ilock(ip)
		ip.Nlink--
		c.Iupdate(ip)
		c.IunlockPut(ip)
		return err
	}
	c.Ilock(dp)
	linkErr := dirent.Dirlink(c, dp, name, ip.Inum)
	c.IunlockPut(dp)

	if linkErr != nil {
		c.Ilock(ip)
		ip.Nlink--
		c.Iupdate(ip)
		c.Iunlock(ip)
	}
	c.Iput(ip)
	return linkErr
}

// Unlink removes path's directory entry. If that drops the target's
// on-disk reference count to zero, the eventual Iput frees its blocks
// and its inode slot. "." and ".." may not be unlinked; a directory may
// only be unlinked if it is empty (spec.md §4.I).
func (fs *FS) Unlink(p *Proc, path string) error {
	c := fs.cache
	fs.log.BeginOp()
	defer fs.log.EndOp()

	dp, name, err := resolve.NameiParent(c, fs.root, p.Cwd, path)
	if err != nil {
		return err
	}
	c.Ilock(dp)
	if name == "." || name == ".." {
		c.IunlockPut(dp)
		return common.ErrInvalid
	}

	ip, off, err := dirent.Dirlookup(c, dp, name)
	if err != nil {
		c.IunlockPut(dp)
		return err
	}
	c.Ilock(ip)

	if ip.Nlink < 1 {
		panic("fs: unlink: target inode has nlink < 1")
	}
	if ip.Type == common.T_DIR && !dirent.IsEmpty(c, ip) {
		c.IunlockPut(ip)
		c.IunlockPut(dp)
		return common.ErrNotEmpty
	}

	if err := dirent.Dirunlink(c, dp, off); err != nil {
		panic("fs: unlink: dirunlink failed after validation")
	}
	if ip.Type == common.T_DIR {
		dp.Nlink-- // the unlinked child's ".." no longer points at dp
		c.Iupdate(dp)
	}
	c.Iunlock(dp)
	c.Iput(dp)

	ip.Nlink--
	c.Iupdate(ip)
	c.IunlockPut(ip)
	return nil
}

// Chdir resolves path and, if it names a directory, makes it p's new
// current directory.
func (fs *FS) Chdir(p *Proc, path string) error {
	c := fs.cache
	fs.log.BeginOp()
	defer fs.log.EndOp()

	ip, err := resolve.Namei(c, fs.root, p.Cwd, path)
	if err != nil {
		return err
	}
	c.Ilock(ip)
	if ip.Type != common.T_DIR {
		c.IunlockPut(ip)
		return common.ErrNotDir
	}
	c.Iunlock(ip)

	c.Iput(p.Cwd)
	p.Cwd = ip
	return nil
}

// Open resolves path (creating it first if mode has O_CREATE), follows a
// symlink result up to MaxSymlinkDepth hops unless O_NOFOLLOW is set, and
// returns the terminal inode locked. Opening a directory is only allowed
// read-only. On any failure, including a symlink cycle, every inode this
// call referenced has already been released (spec.md §9, Open Questions).
func (fs *FS) Open(p *Proc, path string, mode int) (*inode.Inode, error) {
	c := fs.cache
	fs.log.BeginOp()
	defer fs.log.EndOp()

	var ip *inode.Inode

	if mode&common.O_CREATE != 0 {
		created, err := fs.Create(p, path, common.T_FILE, 0, 0)
		if err != nil {
			return nil, err
		}
		ip = created
	} else {
		resolved, err := resolve.Namei(c, fs.root, p.Cwd, path)
		if err != nil {
			return nil, err
		}
		c.Ilock(resolved)
		ip = resolved
	}

	if mode&common.O_NOFOLLOW == 0 {
		depth := 0
		for ip.Type == common.T_SYMLINK {
			if depth >= common.MaxSymlinkDepth {
				c.IunlockPut(ip)
				return nil, common.ErrSymlinkLoop
			}
			depth++
			target := ip.Target
			c.IunlockPut(ip)

			next, err := resolve.Namei(c, fs.root, p.Cwd, target)
			if err != nil {
				return nil, err
			}
			c.Ilock(next)
			ip = next
		}
	}

	readOnly := mode&(common.O_WRONLY|common.O_RDWR) == 0
	if ip.Type == common.T_DIR && !readOnly {
		c.IunlockPut(ip)
		return nil, common.ErrIsDir
	}

	if mode&common.O_TRUNC != 0 && ip.Type == common.T_FILE {
		c.Itrunc(ip)
	}

	return ip, nil
}
