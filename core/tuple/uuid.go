package tuple

import (
	"crypto/sha1"
	"fmt"
)

// UUID is a 16-byte RFC 4122 identifier. core stays dependency-free, so
// this package hand-rolls the one algorithm it needs (name-based v5
// generation, RFC 4122 §4.3) instead of importing google/uuid; the root
// module uses the real library for everything else UUID-shaped.
type UUID [16]byte

func (u UUID) String() string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", u[0:4], u[4:6], u[6:8], u[8:10], u[10:16])
}

// rootNamespace seeds the UUID derived from a raw object-id string
// before it is used as the "hash namespace" input to uuidV5 for a
// Subject's unique-id (see Subject.UniqueID). It is an arbitrary fixed
// constant, not meaningful outside this package; any stable constant
// would do equally well, since what matters is determinism.
var rootNamespace = UUID{
	0x77, 0x61, 0x72, 0x64, 0x65, 0x6e, 0x2d, 0x63,
	0x6f, 0x72, 0x65, 0x2d, 0x74, 0x75, 0x70, 0x6c,
}

// uuidV5 computes a name-based UUID (version 5, variant RFC 4122) from
// a 16-byte namespace and a name, per RFC 4122 §4.3.
func uuidV5(namespace UUID, name string) UUID {
	h := sha1.New()
	h.Write(namespace[:])
	h.Write([]byte(name))
	sum := h.Sum(nil)

	var u UUID
	copy(u[:], sum[:16])
	u[6] = (u[6] & 0x0f) | 0x50 // version 5
	u[8] = (u[8] & 0x3f) | 0x80 // variant RFC 4122
	return u
}

// uuidFromString deterministically maps an arbitrary string (an
// object-id) to a UUID, so it can serve as the namespace input to a
// second uuidV5 call.
func uuidFromString(s string) UUID {
	return uuidV5(rootNamespace, s)
}
