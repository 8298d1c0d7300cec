package sync

import (
	"encoding/binary"
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// stripeRing consistently hashes keys onto stripe indices. Stripe i is named
// prefix followed by i, and owns virtualNodes points derived from the hash of
// that name.
type stripeRing struct {
	points *treemap.Map // int64 hash -> stripe index
	first  int
}

func newStripeRing(prefix string, stripes, virtualNodes uint) *stripeRing {
	points := treemap.NewWith(utils.Int64Comparator)

	nameHash := make([]byte, 8)
	replica := make([]byte, 4)
	for stripe := 0; stripe < int(stripes); stripe++ {
		hash, _ := murmur3.Sum128([]byte(fmt.Sprintf("%s%d", prefix, stripe)))
		binary.LittleEndian.PutUint64(nameHash, hash)

		for node := uint(0); node < virtualNodes; node++ {
			binary.LittleEndian.PutUint32(replica, uint32(node))

			hasher := murmur3.New128()
			hasher.Write(nameHash)
			hasher.Write(replica)
			point, _ := hasher.Sum128()
			points.Put(int64(point), stripe)
		}
	}

	r := &stripeRing{points: points}
	if _, first := points.Min(); first != nil {
		r.first = first.(int)
	}
	return r
}

// stripe returns the index owning key: the first ring point at or after the
// key's hash, wrapping to the lowest point.
func (r *stripeRing) stripe(key []byte) int {
	hash, _ := murmur3.Sum128(key)
	if _, stripe := r.points.Ceiling(int64(hash)); stripe != nil {
		return stripe.(int)
	}
	return r.first
}
