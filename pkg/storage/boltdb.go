package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/herd/pkg/events"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"
)

var (
	// Bucket names
	bucketOperations = []byte("operations")
	bucketEvents     = []byte("events")
)

// ErrLocked is returned when another herd invocation holds the journal
var ErrLocked = errors.New("journal is locked by another herd invocation")

// DBFile is the journal file name inside the state directory
const DBFile = "herd.db"

// DefaultLockTimeout is how long Open waits for the file lock
const DefaultLockTimeout = 2 * time.Second

// Options configures how the journal is opened
type Options struct {
	// Timeout bounds the wait for the file lock
	Timeout time.Duration
	// ReadOnly takes a shared lock, which does not exclude other readers
	ReadOnly bool
}

// BoltJournal implements Journal using BoltDB. bbolt holds an exclusive
// flock on the file while it is open for writing, which serializes herd
// invocations on the same control machine.
type BoltJournal struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBoltJournal opens (creating if needed) the journal in stateDir
func NewBoltJournal(stateDir string, opts Options) (*BoltJournal, error) {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultLockTimeout
	}
	dbPath := filepath.Join(stateDir, DBFile)

	if opts.ReadOnly {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
	} else if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: opts.Timeout, ReadOnly: opts.ReadOnly})
	if err != nil {
		if errors.Is(err, berrors.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, dbPath)
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if !opts.ReadOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			for _, bucket := range [][]byte{bucketOperations, bucketEvents} {
				if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
					return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
				}
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return &BoltJournal{db: db, now: time.Now}, nil
}

// Close closes the database and releases the lock
func (j *BoltJournal) Close() error {
	return j.db.Close()
}

// operationKey sorts operations by start time
func operationKey(op *Operation) []byte {
	return []byte(fmt.Sprintf("%020d-%s", op.StartedAt.UnixNano(), op.ID))
}

func (j *BoltJournal) put(op *Operation) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOperations)
		data, err := json.Marshal(op)
		if err != nil {
			return err
		}
		return b.Put(operationKey(op), data)
	})
}

// Begin records the start of an operation
func (j *BoltJournal) Begin(name string, args []string) (*Operation, error) {
	op := &Operation{
		ID:        uuid.NewString(),
		Name:      name,
		Args:      args,
		StartedAt: j.now(),
		Result:    ResultRunning,
	}
	if err := j.put(op); err != nil {
		return nil, fmt.Errorf("failed to record operation: %w", err)
	}
	return op, nil
}

// Finish records the outcome of an operation
func (j *BoltJournal) Finish(op *Operation, err error) error {
	finished := j.now()
	op.FinishedAt = &finished
	op.Result = ResultSuccess
	if err != nil {
		op.Result = ResultFailure
		op.Error = err.Error()
	}
	return j.put(op)
}

// RecordEvent stores an event under the operation that caused it
func (j *BoltJournal) RecordEvent(op *Operation, event *events.Event) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(bucketEvents).CreateBucketIfNotExists([]byte(op.ID))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return b.Put([]byte(fmt.Sprintf("%020d", seq)), data)
	})
}

// ListOperations returns operations newest first
func (j *BoltJournal) ListOperations(limit int) ([]*Operation, error) {
	var ops []*Operation
	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOperations)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(ops) == limit {
				break
			}
			var op Operation
			if err := json.Unmarshal(v, &op); err != nil {
				return err
			}
			ops = append(ops, &op)
		}
		return nil
	})
	return ops, err
}

// ListEvents returns the events of op in the order they were recorded
func (j *BoltJournal) ListEvents(op *Operation) ([]*events.Event, error) {
	var list []*events.Event
	err := j.db.View(func(tx *bolt.Tx) error {
		parent := tx.Bucket(bucketEvents)
		if parent == nil {
			return nil
		}
		b := parent.Bucket([]byte(op.ID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var event events.Event
			if err := json.Unmarshal(v, &event); err != nil {
				return err
			}
			list = append(list, &event)
			return nil
		})
	})
	return list, err
}
