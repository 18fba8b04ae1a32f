package topicmap

import (
	"cmp"
	"encoding/binary"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/orneryd/tmengine/pkg/literal"
)

// Signature is a structural digest of a construct. Constructs that are
// duplicates of each other in the TMDM sense always have equal signatures;
// equal signatures are confirmed with an exact comparison before any merge.
type Signature uint64

type sigWriter struct {
	d   *xxhash.Digest
	buf [8]byte
}

// sigWriters recycles writers between signature computations.
var sigWriters = sync.Pool{
	New: func() any { return &sigWriter{d: xxhash.New()} },
}

func newSigWriter(k Kind) *sigWriter {
	w := sigWriters.Get().(*sigWriter)
	w.d.Reset()
	w.buf[0] = byte(k)
	w.d.Write(w.buf[:1])
	return w
}

func (w *sigWriter) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[:], v)
	w.d.Write(w.buf[:])
}

func (w *sigWriter) str(s string) {
	w.u64(uint64(len(s)))
	w.d.WriteString(s)
}

func (w *sigWriter) lit(l literal.Literal) {
	w.str(l.Value())
	w.str(l.Datatype())
}

func (w *sigWriter) scope(s *Scope) {
	w.u64(uint64(len(s.themes)))
	for _, id := range s.themes {
		w.u64(uint64(id))
	}
}

// sum returns the digest and releases w to the pool. w must not be used
// afterwards.
func (w *sigWriter) sum() Signature {
	sig := Signature(w.d.Sum64())
	sigWriters.Put(w)
	return sig
}

// SignatureOf computes the structural signature of c.
//
//	occurrence   type, value, datatype, scope
//	name         type, value, scope
//	variant      parent name signature, value, datatype, scope
//	role         type, player
//	association  type, scope, sorted role signatures
//
// Topics and topic maps have no structural duplicates; their signature is
// derived from their ID.
func SignatureOf(c Construct) Signature {
	switch c := c.(type) {
	case *Occurrence:
		w := newSigWriter(KindOccurrence)
		w.u64(uint64(c.typ))
		w.lit(c.value)
		w.scope(c.scope)
		return w.sum()
	case *Name:
		w := newSigWriter(KindName)
		w.u64(uint64(c.typ))
		w.lit(c.value)
		w.scope(c.scope)
		return w.sum()
	case *Variant:
		w := newSigWriter(KindVariant)
		if n, ok := c.tm.lookup(c.parent).(*Name); ok {
			w.u64(uint64(SignatureOf(n)))
		}
		w.lit(c.value)
		w.scope(c.scope)
		return w.sum()
	case *Role:
		return roleSignature(c.typ, c.player)
	case *Association:
		w := newSigWriter(KindAssociation)
		w.u64(uint64(c.typ))
		w.scope(c.scope)
		sigs := roleSignatures(c)
		w.u64(uint64(len(sigs)))
		for _, s := range sigs {
			w.u64(uint64(s))
		}
		return w.sum()
	case *Topic, *TopicMap:
		w := newSigWriter(c.Kind())
		w.u64(uint64(c.ID()))
		return w.sum()
	}
	return 0
}

func roleSignature(typ, player ID) Signature {
	w := newSigWriter(KindRole)
	w.u64(uint64(typ))
	w.u64(uint64(player))
	return w.sum()
}

func roleSignatures(a *Association) []Signature {
	sigs := make([]Signature, 0, len(a.roles))
	for id := range a.roles {
		if r, ok := a.tm.lookup(id).(*Role); ok {
			sigs = append(sigs, roleSignature(r.typ, r.player))
		}
	}
	slices.Sort(sigs)
	return sigs
}

// equivalent reports whether a and b are structurally identical. It backs up
// signature equality against hash collisions.
func equivalent(a, b Construct) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case *Occurrence:
		b := b.(*Occurrence)
		return a.typ == b.typ && a.value == b.value && a.scope == b.scope
	case *Name:
		b := b.(*Name)
		return a.typ == b.typ && a.value == b.value && a.scope == b.scope
	case *Variant:
		b := b.(*Variant)
		if a.value != b.value || a.scope != b.scope {
			return false
		}
		if a.parent == b.parent {
			return true
		}
		na, ok1 := a.tm.lookup(a.parent).(*Name)
		nb, ok2 := b.tm.lookup(b.parent).(*Name)
		return ok1 && ok2 && equivalent(na, nb)
	case *Role:
		b := b.(*Role)
		return a.typ == b.typ && a.player == b.player
	case *Association:
		b := b.(*Association)
		if a.typ != b.typ || a.scope != b.scope || len(a.roles) != len(b.roles) {
			return false
		}
		return slices.Equal(rolePairs(a), rolePairs(b))
	}
	return a.ID() == b.ID()
}

type rolePair struct{ typ, player ID }

func rolePairs(a *Association) []rolePair {
	pairs := make([]rolePair, 0, len(a.roles))
	for id := range a.roles {
		if r, ok := a.tm.lookup(id).(*Role); ok {
			pairs = append(pairs, rolePair{r.typ, r.player})
		}
	}
	slices.SortFunc(pairs, compareRolePairs)
	return pairs
}

func compareRolePairs(x, y rolePair) int {
	if x.typ != y.typ {
		return cmp.Compare(x.typ, y.typ)
	}
	return cmp.Compare(x.player, y.player)
}
