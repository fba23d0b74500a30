package store

import (
	"context"
	"errors"
	"fmt"
)

// TransactionSet sequences the independent transactions of several stores.
//
// Cross-store transactions are not atomic: each member is begun and committed
// on its own. The set records which members were begun, in order, so that any
// failure can roll back exactly those members in reverse.
//
// Typical use:
//
//	ts, err := store.BeginAll(ctx, primary, staging, reference, images)
//	if err != nil {
//	    return err
//	}
//	defer ts.Cancel()
//	// ... writes ...
//	return ts.Commit()
type TransactionSet struct {
	begun    []Transactional
	finished bool
}

// BeginAll begins a transaction on every store in order. If a begin fails,
// the stores already begun are cancelled in reverse order and the begin
// error is returned.
func BeginAll(ctx context.Context, stores ...Transactional) (*TransactionSet, error) {
	ts := &TransactionSet{begun: make([]Transactional, 0, len(stores))}
	for i, s := range stores {
		if err := s.BeginTransaction(ctx); err != nil {
			cancelErr := ts.Cancel()
			return nil, errors.Join(fmt.Errorf("begin transaction %d of %d: %w", i+1, len(stores), err), cancelErr)
		}
		ts.begun = append(ts.begun, s)
	}
	return ts, nil
}

// Len returns the number of begun members.
func (ts *TransactionSet) Len() int { return len(ts.begun) }

// Commit commits the members in nested order, last begun first. If a commit
// fails, that member and every member not yet committed are cancelled and the
// commit error is returned. Members already committed stay committed.
func (ts *TransactionSet) Commit() error {
	if ts.finished {
		return ErrNoTransaction
	}
	ts.finished = true

	for i := len(ts.begun) - 1; i >= 0; i-- {
		if err := ts.begun[i].CommitTransaction(); err != nil {
			return errors.Join(
				fmt.Errorf("commit transaction %d of %d: %w", i+1, len(ts.begun), err),
				cancelReverse(ts.begun[:i+1]),
			)
		}
	}
	return nil
}

// Cancel rolls back every begun member in reverse order and joins their
// errors. It is a no-op after Commit or a previous Cancel, so it can be
// deferred right after BeginAll.
func (ts *TransactionSet) Cancel() error {
	if ts.finished {
		return nil
	}
	ts.finished = true
	return cancelReverse(ts.begun)
}

func cancelReverse(members []Transactional) error {
	var errs []error
	for i := len(members) - 1; i >= 0; i-- {
		if err := members[i].CancelTransactionIfNeeded(); err != nil {
			errs = append(errs, fmt.Errorf("cancel transaction %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}
