package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx   *fakeTx
	opts pgx.TxOptions
	err  error
}

func (b *fakeBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.opts = opts
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

func TestWithReadOnlyTxCommits(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	called := false
	err := WithReadOnlyTx(context.Background(), b, func(tx pgx.Tx) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.True(t, b.tx.committed)
	assert.Equal(t, pgx.ReadOnly, b.opts.AccessMode)
	assert.Equal(t, pgx.RepeatableRead, b.opts.IsoLevel)
}

func TestWithReadOnlyTxRollsBackOnError(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	boom := errors.New("boom")
	err := WithReadOnlyTx(context.Background(), b, func(pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, b.tx.committed)
	assert.True(t, b.tx.rolledBack)
}

func TestWithReadOnlyTxBeginFailure(t *testing.T) {
	refused := errors.New("connection refused")
	b := &fakeBeginner{err: refused}
	err := WithReadOnlyTx(context.Background(), b, func(pgx.Tx) error {
		t.Fatal("fn must not run")
		return nil
	})
	require.ErrorIs(t, err, refused)
	assert.Contains(t, err.Error(), "begin tx")
}

func TestWithTxIsReadWrite(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	require.NoError(t, WithTx(context.Background(), b, func(pgx.Tx) error { return nil }))
	assert.True(t, b.tx.committed)
	assert.Equal(t, pgx.TxAccessMode(""), b.opts.AccessMode)
}
