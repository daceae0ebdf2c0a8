// Package persister durably stores the two fields of carnot.State that
// must survive a restart: highest_voted_view and local_high_qc. Losing
// either would let a restarted node double-vote or forget the highest
// certified block it had already seen, both safety violations. Layout
// follows storage/badger/views.go's thin-wrapper-around-badger.DB
// style: a fixed one-byte key per field, badger.Txn closures for
// reads/writes.
package persister

import (
	"encoding/binary"

	"github.com/dgraph-io/badger/v2"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/carnot-network/carnot/carnot"
)

var (
	keyHighestVotedView = []byte{0x01}
	keyLocalHighQC      = []byte{0x02}
)

// Persister durably tracks highest_voted_view and local_high_qc across
// restarts for a single node identity.
type Persister struct {
	db *badger.DB
}

// Open opens (or creates) a badger database at dir for persisting
// carnot.State's restart-sensitive fields.
func Open(dir string) (*Persister, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "could not open badger db")
	}
	return &Persister{db: db}, nil
}

// Close releases the underlying badger database.
func (p *Persister) Close() error {
	return p.db.Close()
}

// PutHighestVotedView durably records that the node has now voted
// through view. Must be called, and the write confirmed, before the
// corresponding Vote output is ever dispatched onto the network: a
// crash between casting a vote and persisting this value would let a
// restarted node violate Invariant 6 (vote once per view).
func (p *Persister) PutHighestVotedView(view carnot.View) error {
	return p.db.Update(func(txn *badger.Txn) error {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(view))
		return txn.Set(keyHighestVotedView, buf[:])
	})
}

// GetHighestVotedView returns the last durably recorded highest_voted_view,
// or carnot.NoView if nothing has ever been persisted.
func (p *Persister) GetHighestVotedView() (carnot.View, error) {
	view := carnot.NoView
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyHighestVotedView)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			view = carnot.View(binary.BigEndian.Uint64(val))
			return nil
		})
	})
	return view, err
}

// PutLocalHighQC durably records the node's local_high_qc.
func (p *Persister) PutLocalHighQC(qc carnot.StandardQC) error {
	raw, err := msgpack.Marshal(qc)
	if err != nil {
		return errors.Wrap(err, "could not encode local high qc")
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyLocalHighQC, raw)
	})
}

// GetLocalHighQC returns the last durably recorded local_high_qc, or
// the genesis QC if nothing has ever been persisted.
func (p *Persister) GetLocalHighQC() (carnot.StandardQC, error) {
	qc := carnot.GenesisQC()
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyLocalHighQC)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &qc)
		})
	})
	return qc, err
}
