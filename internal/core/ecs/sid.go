package ecs

import (
	"fmt"
	"hash/fnv"
)

// Sid is a stable string id: the 32-bit FNV-1a hash of a name. Two Sids are
// the same id when their hashes match; the name is kept for diagnostics.
type Sid struct {
	Hash uint32
	Name string
}

func NewSid(name string) Sid {
	h := fnv.New32a()
	h.Write([]byte(name))
	return Sid{Hash: h.Sum32(), Name: name}
}

func (s Sid) Equal(other Sid) bool {
	return s.Hash == other.Hash
}

func (s Sid) String() string {
	return fmt.Sprintf("%s(0x%08x)", s.Name, s.Hash)
}
