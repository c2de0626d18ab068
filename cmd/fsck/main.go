// Command fsck walks a formatted image read-only and checks the
// invariants the file system's own operations are supposed to maintain
// (spec.md §7, §8): every directory has exactly one "." (pointing to
// itself) and one ".." (pointing to its parent), every inode's on-disk
// link count matches the number of directory entries naming it, and the
// free-block bitmap matches the set of blocks actually reachable from
// some inode. Modeled on jnwhiteh-minixfs's cmd/fsck, trimmed to the
// properties spec.md actually calls out.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/tchajed/xv6fs/alloc"
	"github.com/tchajed/xv6fs/common"
	"github.com/tchajed/xv6fs/dirent"
	"github.com/tchajed/xv6fs/disk"
	"github.com/tchajed/xv6fs/fs"
	"github.com/tchajed/xv6fs/inode"
)

type checker struct {
	fsys *fs.FS
	c    *inode.Cache

	seen       map[common.Inum]bool
	nlinkFound map[common.Inum]uint64 // entries naming this inode, from some directory
	nlinkDisk  map[common.Inum]uint64
	reachable  map[common.Bnum]bool
	errs       int
}

func (chk *checker) errorf(format string, args ...interface{}) {
	fmt.Printf("fsck: "+format+"\n", args...)
	chk.errs++
}

// walk visits ip (already referenced, not locked) and everything
// reachable from it. parent is the inode number ip's ".." should name;
// for the root, that is the root itself.
func (chk *checker) walk(ip *inode.Inode, parent common.Inum) {
	if chk.seen[ip.Inum] {
		chk.c.Iput(ip)
		return
	}
	chk.seen[ip.Inum] = true

	chk.c.Ilock(ip)
	chk.nlinkDisk[ip.Inum] = ip.Nlink
	for _, bn := range chk.c.ReachableBlocks(ip) {
		if chk.reachable[bn] {
			chk.errorf("block %d is reachable from more than one inode", bn)
		}
		chk.reachable[bn] = true
	}

	if ip.Type != common.T_DIR {
		chk.c.IunlockPut(ip)
		return
	}

	sawDot, sawDotDot := false, false
	var children []common.Inum
	dirent.ForEach(chk.c, ip, func(name string, inum common.Inum, off uint64) {
		switch name {
		case ".":
			sawDot = true
			if inum != ip.Inum {
				chk.errorf("inode %d: \".\" names %d, not itself", ip.Inum, inum)
			}
		case "..":
			sawDotDot = true
			if inum != parent {
				chk.errorf("inode %d: \"..\" names %d, want parent %d", ip.Inum, inum, parent)
			}
			// The root's own ".." names itself, not a real parent link;
			// every other directory's ".." counts toward its parent's
			// nlink the same way a normal entry counts toward a file's.
			if ip.Inum != parent {
				chk.nlinkFound[parent]++
			}
		default:
			chk.nlinkFound[inum]++
			children = append(children, inum)
		}
	})
	if !sawDot {
		chk.errorf("inode %d: missing \".\" entry", ip.Inum)
	}
	if !sawDotDot {
		chk.errorf("inode %d: missing \"..\" entry", ip.Inum)
	}
	me := ip.Inum
	chk.c.IunlockPut(ip)

	for _, inum := range children {
		chk.walk(chk.c.Iget(inum), me)
	}
}

func (chk *checker) checkLinkCounts() {
	for inum, onDisk := range chk.nlinkDisk {
		expected := chk.nlinkFound[inum]
		if inum == common.ROOTINO {
			// The root's own entry in its parent does not exist; format
			// lays down its single implicit reference directly.
			expected++
		}
		if expected != onDisk {
			chk.errorf("inode %d: link count %d on disk, %d directory entries found", inum, onDisk, expected)
		}
	}
}

func (chk *checker) checkBitmap() {
	sb := chk.fsys.Super()
	bc := chk.fsys.Cache().Bcache()
	for bn := sb.DataStart; bn < sb.DataStart+sb.Nblocks; bn++ {
		allocated := alloc.IsAllocated(bc, sb, bn)
		if allocated && !chk.reachable[bn] {
			chk.errorf("block %d is marked allocated but unreachable", bn)
		}
		if !allocated && chk.reachable[bn] {
			chk.errorf("block %d is reachable but not marked allocated", bn)
		}
	}
}

func main() {
	filename := flag.String("file", "", "disk image to check")
	flag.Parse()
	if *filename == "" {
		fmt.Fprintln(os.Stderr, "usage: fsck -file <image>")
		os.Exit(2)
	}

	fi, err := os.Stat(*filename)
	if err != nil {
		log.Fatalf("fsck: %s: %v", *filename, err)
	}
	numBlocks := uint64(fi.Size()) / disk.BlockSize

	d, err := disk.NewFileDisk(*filename, numBlocks)
	if err != nil {
		log.Fatalf("fsck: %s: %v", *filename, err)
	}

	fsys := fs.Mount(d)

	chk := &checker{
		fsys:       fsys,
		c:          fsys.Cache(),
		seen:       make(map[common.Inum]bool),
		nlinkFound: make(map[common.Inum]uint64),
		nlinkDisk:  make(map[common.Inum]uint64),
		reachable:  make(map[common.Bnum]bool),
	}
	chk.walk(chk.c.Iget(common.ROOTINO), common.ROOTINO)
	chk.checkLinkCounts()
	chk.checkBitmap()

	if err := d.Close(); err != nil {
		log.Fatalf("fsck: closing %s: %v", *filename, err)
	}

	if chk.errs > 0 {
		fmt.Printf("fsck: %d error(s) found\n", chk.errs)
		os.Exit(1)
	}
	fmt.Println("fsck: clean")
}
