package inode

import (
	"github.com/tchajed/marshal"

	"github.com/tchajed/xv6fs/common"
	"github.com/tchajed/xv6fs/super"
)

// dinode is the decoded on-disk inode record (spec.md §3, §6): a type
// tag, device major/minor for T_DEVICE inodes, a directory-entry link
// count, a byte size, NDIRECT+2 block pointers (direct, one
// singly-indirect, one doubly-indirect), and — for T_SYMLINK — the
// target path stored inline in the record.
type dinode struct {
	Type   common.Itype
	Major  uint64
	Minor  uint64
	Nlink  uint64
	Size   uint64
	Addrs  [common.NDIRECT + 2]common.Bnum
	Target string
}

// numericPartSize is the encoded size of every field except Target.
const numericPartSize = 8*5 + (common.NDIRECT+2)*8

func (d *dinode) encode() []byte {
	enc := marshal.NewEnc(numericPartSize)
	enc.PutInt(uint64(d.Type))
	enc.PutInt(d.Major)
	enc.PutInt(d.Minor)
	enc.PutInt(d.Nlink)
	enc.PutInt(d.Size)
	enc.PutInts(d.Addrs[:])
	rec := make([]byte, super.INODESZ)
	copy(rec, enc.Finish())

	target := []byte(d.Target)
	if len(target) > common.MAXPATH-1 {
		target = target[:common.MAXPATH-1]
	}
	copy(rec[numericPartSize:], target)
	return rec
}

func decodeDinode(rec []byte) dinode {
	dec := marshal.NewDec(rec[:numericPartSize])
	var d dinode
	d.Type = common.Itype(dec.GetInt())
	d.Major = dec.GetInt()
	d.Minor = dec.GetInt()
	d.Nlink = dec.GetInt()
	d.Size = dec.GetInt()
	addrs := dec.GetInts(common.NDIRECT + 2)
	copy(d.Addrs[:], addrs)

	targetBytes := rec[numericPartSize:]
	n := 0
	for n < len(targetBytes) && targetBytes[n] != 0 {
		n++
	}
	d.Target = string(targetBytes[:n])
	return d
}
