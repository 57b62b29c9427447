// Package journal provides persistent, append-only storage for harness
// run outcomes. Each processed call becomes one record carrying the
// terminal state, the rejection code, and a digest of the final account
// set, so a later run of the same scenario can be checked for drift
// without replaying it.
package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	bolt "go.etcd.io/bbolt"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/harness"
)

var (
	// ErrRecordNotFound is returned when a record doesn't exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrClosed is returned when operating on a closed journal.
	ErrClosed = errors.New("journal closed")
)

// Bucket names for BoltDB.
var (
	// bucketRecords stores records keyed by sequence number.
	bucketRecords = []byte("records")

	// bucketByScenario indexes sequence numbers by scenario name.
	// Key format: scenario + 0x00 + seq (8 bytes, big-endian)
	bucketByScenario = []byte("by_scenario")

	// bucketMetadata stores journal metadata.
	bucketMetadata = []byte("metadata")
)

var keyNextSeq = []byte("next_seq")

// Record is one journaled call outcome.
type Record struct {
	// Seq is the journal sequence number, assigned on append.
	Seq uint64

	// Scenario names the test scenario that made the call.
	Scenario string

	// Instruction is the processed instruction's name.
	Instruction string

	// Success mirrors the outcome.
	Success bool

	// Code is the rejection code (CodeNone on success).
	Code harness.Code

	// Phase is the state machine phase the call ended in.
	Phase harness.State

	// Logs are the handler log lines.
	Logs []string

	// StateDigest is the blake3 digest of the final account set.
	StateDigest types.Hash

	// RecordedAt is the append wall-clock time, unix nanoseconds.
	RecordedAt int64
}

// Config holds journal configuration.
type Config struct {
	// Path is the journal database file path.
	Path string

	// NoSync disables fsync after each write.
	NoSync bool
}

// Journal is a BoltDB-backed outcome journal.
type Journal struct {
	db *bolt.DB

	mu      sync.RWMutex
	nextSeq uint64
	closed  bool
}

// Open creates or opens a journal at the configured path.
func Open(cfg Config) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := bolt.Open(cfg.Path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
		NoSync:  cfg.NoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	j := &Journal{db: db}
	if err := j.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}
	if err := j.loadNextSeq(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	return j, nil
}

func (j *Journal) initBuckets() error {
	return j.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRecords, bucketByScenario, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func (j *Journal) loadNextSeq() error {
	return j.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMetadata)
		if v := meta.Get(keyNextSeq); v != nil && len(v) >= 8 {
			j.nextSeq = binary.BigEndian.Uint64(v)
		}
		return nil
	})
}

// seqKey encodes a sequence number big-endian so bolt iterates in append
// order.
func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func scenarioKey(scenario string, seq uint64) []byte {
	k := make([]byte, len(scenario)+1+8)
	copy(k, scenario)
	binary.BigEndian.PutUint64(k[len(scenario)+1:], seq)
	return k
}

// Append journals one record and returns its assigned sequence number.
func (j *Journal) Append(rec *Record) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, ErrClosed
	}

	rec.Seq = j.nextSeq
	if rec.RecordedAt == 0 {
		rec.RecordedAt = time.Now().UnixNano()
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}

	err := j.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRecords).Put(seqKey(rec.Seq), buf.Bytes()); err != nil {
			return err
		}
		if err := tx.Bucket(bucketByScenario).Put(scenarioKey(rec.Scenario, rec.Seq), seqKey(rec.Seq)); err != nil {
			return err
		}
		return tx.Bucket(bucketMetadata).Put(keyNextSeq, seqKey(rec.Seq+1))
	})
	if err != nil {
		return 0, err
	}

	j.nextSeq++
	return rec.Seq, nil
}

// Get retrieves a record by sequence number.
func (j *Journal) Get(seq uint64) (*Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrClosed
	}

	var rec Record
	err := j.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get(seqKey(seq))
		if data == nil {
			return ErrRecordNotFound
		}
		return gob.NewDecoder(bytes.NewReader(data)).Decode(&rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ByScenario returns all records for a scenario in append order.
func (j *Journal) ByScenario(scenario string) ([]*Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrClosed
	}

	prefix := append([]byte(scenario), 0x00)
	var records []*Record

	err := j.db.View(func(tx *bolt.Tx) error {
		recs := tx.Bucket(bucketRecords)
		c := tx.Bucket(bucketByScenario).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			data := recs.Get(v)
			if data == nil {
				continue
			}
			var rec Record
			if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Count returns the number of journaled records.
func (j *Journal) Count() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.nextSeq
}

// Sync flushes the journal to disk.
func (j *Journal) Sync() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrClosed
	}
	return j.db.Sync()
}

// Close closes the journal.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	j.closed = true
	return j.db.Close()
}

// StateDigest computes the blake3 digest of an account set in slot order.
// Two runs that end in byte-identical account state produce the same
// digest.
func StateDigest(accounts []*account.Account) types.Hash {
	h := blake3.New()
	for _, acc := range accounts {
		h.Write(acc.Key[:])
		h.Write(acc.Serialize())
	}
	var digest types.Hash
	copy(digest[:], h.Sum(nil))
	return digest
}

// FromOutcome builds a journal record from a processed call.
func FromOutcome(scenario string, instruction string, out *harness.Outcome) *Record {
	return &Record{
		Scenario:    scenario,
		Instruction: instruction,
		Success:     out.Success,
		Code:        out.Code,
		Phase:       out.Phase,
		Logs:        out.Logs,
		StateDigest: StateDigest(out.Accounts),
	}
}
