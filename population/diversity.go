package population

import (
	"bytes"
	"encoding/gob"
	"hash/fnv"
	"math/bits"

	"github.com/evoswarm/evoswarm/individual"
)

// diversitySigWords/diversityHashFns size the bitset-hash signature
// computed per individual: diversityHashFns bits are set per
// signature, turned on by independently-salted FNV-1a hashes of the
// individual's gob encoding. This is a fixed, small-width
// sketch-per-key bitset rather than a full cardinality estimator,
// since a diagnostic doesn't need cardinality-estimation accuracy.
const (
	diversitySigBits  = 256
	diversitySigWords = diversitySigBits / 64
	diversityHashFns  = 4
)

type diversitySignature [diversitySigWords]uint64

// signature hashes v's gob encoding into a fixed-width bitset.
func signature[T individual.Individual[T]](v T) (diversitySignature, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return diversitySignature{}, err
	}
	data := buf.Bytes()

	var sig diversitySignature
	for salt := byte(0); salt < diversityHashFns; salt++ {
		h := fnv.New64a()
		h.Write(data)
		h.Write([]byte{salt})
		bit := h.Sum64() % diversitySigBits
		sig[bit/64] |= 1 << (bit % 64)
	}
	return sig, nil
}

// jaccard returns the Jaccard similarity of two bitset signatures: 1.0
// for identical sets, 0.0 for disjoint ones.
func jaccard(a, b diversitySignature) float64 {
	var union, inter int
	for i := range a {
		union += bits.OnesCount64(a[i] | b[i])
		inter += bits.OnesCount64(a[i] & b[i])
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// DiversityIndex computes the mean pairwise Jaccard similarity across
// every member's bitset-hash signature: 1.0 means every individual
// hashed identically (no diversity observed), 0.0 means every pair of
// signatures was disjoint. It is purely a diagnostic for structured
// logging -- never consulted by MutateRound, Delete, or CheckReset.
func (p *Population[T]) DiversityIndex() (float64, error) {
	if len(p.members) < 2 {
		return 1, nil
	}

	sigs := make([]diversitySignature, len(p.members))
	for i, w := range p.members {
		sig, err := signature[T](w.Value)
		if err != nil {
			return 0, err
		}
		sigs[i] = sig
	}

	var total float64
	pairs := 0
	for i := 0; i < len(sigs); i++ {
		for j := i + 1; j < len(sigs); j++ {
			total += jaccard(sigs[i], sigs[j])
			pairs++
		}
	}
	return total / float64(pairs), nil
}
