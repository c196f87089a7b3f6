// Package cache stores solver verdicts keyed by a fingerprint of the
// constraint set, so repeated runs over the same design skip the solver.
package cache

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/hdl-symex/internal/smt"
)

// Entry is one cached verdict
type Entry struct {
	Result string            `json:"result"`
	Model  map[string]uint64 `json:"model,omitempty"`
	Widths map[string]int    `json:"widths,omitempty"`
}

// NewEntry captures a solver answer
func NewEntry(res smt.Result, model *smt.Model) Entry {
	e := Entry{Result: res.String()}
	if model != nil {
		e.Model = model.Values()
		e.Widths = make(map[string]int, len(e.Model))
		for name := range e.Model {
			e.Widths[name] = model.Width(name)
		}
	}
	return e
}

// Decode turns an entry back into a solver answer
func (e Entry) Decode() (smt.Result, *smt.Model) {
	switch e.Result {
	case smt.Sat.String():
		return smt.Sat, smt.NewModel(e.Model, e.Widths)
	case smt.Unsat.String():
		return smt.Unsat, nil
	}
	return smt.Unknown, nil
}

// Cache is the contract the engine consumes
type Cache interface {
	Get(key uint64) (Entry, bool, error)
	Put(key uint64, e Entry) error
	// Persist flushes pending entries to durable storage
	Persist() error
	Close() error
}

// Fingerprint identifies a conjunction independently of conjunct order
func Fingerprint(terms []*smt.Term) uint64 {
	hashes := make([]uint64, len(terms))
	for i, t := range terms {
		hashes[i] = t.Hash()
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	d := xxhash.New()
	var buf [8]byte
	for _, h := range hashes {
		binary.LittleEndian.PutUint64(buf[:], h)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

func keyString(key uint64) string {
	return fmt.Sprintf("%016x", key)
}

// Open returns the backend named by kind ("file" or "badger") rooted at dir
func Open(kind, dir string, log logrus.FieldLogger) (Cache, error) {
	switch kind {
	case "", "file":
		return OpenFile(dir)
	case "badger":
		return OpenBadger(dir, log)
	}
	return nil, fmt.Errorf("unknown cache backend %q", kind)
}
