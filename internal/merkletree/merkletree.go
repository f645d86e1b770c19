// Package merkletree builds the OpenZeppelin-compatible, sorted-pair
// Keccak-256 Merkle tree over a batch's IPFS CIDs, and the per-leaf
// inclusion proofs the chain contract verifies. The pairing and
// proof-walk algorithm operates over plain CID-string leaves.
package merkletree

import (
	"bytes"
	"encoding/hex"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"
)

// ErrEmptyInput is returned when building a tree over zero leaves.
var ErrEmptyInput = errors.New("merkletree: leaves must be non-empty")

// Tree is the result of building a Merkle tree over a set of leaf
// strings: the root, the leaves in their canonical sorted order, and a
// proof per original leaf string.
type Tree struct {
	Root         [32]byte
	SortedLeaves []string
	Proofs       map[string][][32]byte
	Depth        int
}

// RootHex returns the root as "0x" + lowercase hex.
func (t *Tree) RootHex() string {
	return hashHex(t.Root)
}

// ProofHex returns the stored proof for a leaf as a list of "0x"-prefixed
// lowercase hex sibling hashes, in root-building order.
func (t *Tree) ProofHex(leaf string) []string {
	proof := t.Proofs[leaf]
	out := make([]string, len(proof))
	for i, h := range proof {
		out[i] = hashHex(h)
	}
	return out
}

// Build constructs a deterministic Merkle tree over leaves. Leaves are
// sorted lexicographically by raw byte comparison before hashing so the
// resulting root and proof set do not depend on call order. The last node
// of an odd-sized level is paired with itself (duplicated).
func Build(leaves []string) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyInput
	}

	sorted := make([]string, len(leaves))
	copy(sorted, leaves)
	sort.Strings(sorted)

	leafHashes := make([][32]byte, len(sorted))
	for i, l := range sorted {
		leafHashes[i] = leafHash(l)
	}

	levels := [][][32]byte{leafHashes}
	current := leafHashes
	for len(current) > 1 {
		next := nextLevel(current)
		levels = append(levels, next)
		current = next
	}
	root := current[0]

	proofs := make(map[string][][32]byte, len(sorted))
	for i, l := range sorted {
		proofs[l] = proofForIndex(levels, i)
	}

	return &Tree{
		Root:         root,
		SortedLeaves: sorted,
		Proofs:       proofs,
		Depth:        len(levels) - 1,
	}, nil
}

// Verify recomputes the root from leaf and proof, folding each sibling
// with byte-wise-sorted concatenation, and compares the result to root
// byte for byte (both sides are raw 32-byte values here; VerifyHex
// accepts hex of either case).
func Verify(leaf string, proof [][32]byte, root [32]byte) bool {
	h := leafHash(leaf)
	for _, sibling := range proof {
		h = hashPair(h, sibling)
	}
	return h == root
}

// VerifyHex is Verify with "0x"-prefixed hex-encoded proof elements and
// root, as carried on the wire and recorded on invoices/batches.
func VerifyHex(leaf string, proofHex []string, rootHex string) (bool, error) {
	root, err := decodeHash(rootHex)
	if err != nil {
		return false, err
	}
	proof := make([][32]byte, len(proofHex))
	for i, p := range proofHex {
		h, err := decodeHash(p)
		if err != nil {
			return false, err
		}
		proof[i] = h
	}
	return Verify(leaf, proof, root), nil
}

func leafHash(leaf string) [32]byte {
	return crypto.Keccak256Hash([]byte(leaf))
}

// nextLevel hashes current pairwise into the next level up, pairing the
// last node with itself when the level has odd count.
func nextLevel(current [][32]byte) [][32]byte {
	next := make([][32]byte, 0, (len(current)+1)/2)
	for i := 0; i < len(current); i += 2 {
		if i+1 < len(current) {
			next = append(next, hashPair(current[i], current[i+1]))
		} else {
			next = append(next, hashPair(current[i], current[i]))
		}
	}
	return next
}

// hashPair orders the two hashes by unsigned byte-wise compare (smaller
// first) and hashes the concatenation, matching OpenZeppelin's
// MerkleProof verification order.
func hashPair(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	combined := make([]byte, 0, 64)
	combined = append(combined, a[:]...)
	combined = append(combined, b[:]...)
	return crypto.Keccak256Hash(combined)
}

// proofForIndex walks from a leaf index up through levels, recording the
// sibling hash at each level. The last node of an odd-sized level is
// paired with itself (see nextLevel), so its sibling is itself too.
func proofForIndex(levels [][][32]byte, leafIndex int) [][32]byte {
	var proof [][32]byte
	index := leafIndex
	for level := 0; level < len(levels)-1; level++ {
		nodes := levels[level]
		siblingIndex := index ^ 1
		if siblingIndex < len(nodes) {
			proof = append(proof, nodes[siblingIndex])
		} else {
			proof = append(proof, nodes[index])
		}
		index /= 2
	}
	return proof
}

func hashHex(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}

func decodeHash(s string) ([32]byte, error) {
	var out [32]byte
	s = trimHexPrefix(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, errors.New("merkletree: hash must be 32 bytes")
	}
	copy(out[:], b)
	return out, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
