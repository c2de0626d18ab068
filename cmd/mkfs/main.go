// Command mkfs lays down a fresh file system on a disk image: a
// superblock, a cleared bitmap and inode region, and a root directory
// (spec.md §4.A). Modeled on the disk-image formatters in this corpus
// (jnwhiteh-minixfs's cmd/mkfs): a flag-parsed geometry followed by one
// call into the library that does the actual layout.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/tchajed/xv6fs/disk"
	"github.com/tchajed/xv6fs/fs"
)

func main() {
	filename := flag.String("file", "", "disk image to create")
	size := flag.Uint64("size", 10000, "file system size in blocks")
	ninodes := flag.Uint64("inodes", 200, "number of inodes")
	nlog := flag.Uint64("log", 30, "number of log data blocks")
	flag.Parse()

	if *filename == "" {
		fmt.Fprintln(os.Stderr, "usage: mkfs -file <image> [-size N] [-inodes N] [-log N]")
		os.Exit(2)
	}

	d, err := disk.NewFileDisk(*filename, *size)
	if err != nil {
		log.Fatalf("mkfs: %s: %v", *filename, err)
	}

	sb := fs.Format(d, fs.Config{Size: *size, Ninodes: *ninodes, Nlog: *nlog})
	if err := d.Close(); err != nil {
		log.Fatalf("mkfs: closing %s: %v", *filename, err)
	}

	fmt.Printf("size         = %d\n", sb.Size)
	fmt.Printf("data blocks  = %d\n", sb.Nblocks)
	fmt.Printf("inodes       = %d\n", sb.Ninodes)
	fmt.Printf("log blocks   = %d\n", sb.Nlog)
	fmt.Printf("log start    = %d\n", sb.LogStart)
	fmt.Printf("inode start  = %d\n", sb.InodeStart)
	fmt.Printf("bitmap start = %d\n", sb.BmapStart)
	fmt.Printf("data start   = %d\n", sb.DataStart)
}
