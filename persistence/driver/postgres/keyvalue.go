package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/dogmatiq/topology/persistence/kv"
)

// KeyValueStore is an implementation of [kv.Store] that stores keyspaces in a
// PostgreSQL database.
//
// The schema must be created with [CreateKeyValueStoreSchema] before use.
type KeyValueStore struct {
	DB *sql.DB
}

const kvTable = "topology.kv"

// Open returns the keyspace with the given name.
func (s *KeyValueStore) Open(ctx context.Context, name string) (kv.Keyspace, error) {
	return &keyspace{
		Name: name,
		DB:   s.DB,
	}, ctx.Err()
}

type keyspace struct {
	Name string
	DB   *sql.DB
}

// builder returns a statement builder that uses PostgreSQL placeholders and
// runs statements against the database.
func (ks *keyspace) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.
		PlaceholderFormat(squirrel.Dollar).
		RunWith(ks.DB)
}

func (ks *keyspace) Get(ctx context.Context, k []byte) (v []byte, err error) {
	err = ks.builder().
		Select("value").
		From(kvTable).
		Where(squirrel.Eq{"keyspace": ks.Name, "key": k}).
		QueryRowContext(ctx).
		Scan(&v)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return v, err
}

func (ks *keyspace) Has(ctx context.Context, k []byte) (ok bool, err error) {
	var one int

	err = ks.builder().
		Select("1").
		From(kvTable).
		Where(squirrel.Eq{"keyspace": ks.Name, "key": k}).
		QueryRowContext(ctx).
		Scan(&one)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	return err == nil, err
}

func (ks *keyspace) Set(ctx context.Context, k, v []byte) error {
	if len(v) == 0 {
		_, err := ks.builder().
			Delete(kvTable).
			Where(squirrel.Eq{"keyspace": ks.Name, "key": k}).
			ExecContext(ctx)

		return err
	}

	_, err := ks.builder().
		Insert(kvTable).
		Columns("keyspace", "key", "value").
		Values(ks.Name, k, v).
		Suffix("ON CONFLICT (keyspace, key) DO UPDATE SET value = EXCLUDED.value").
		ExecContext(ctx)

	return err
}

func (ks *keyspace) Range(
	ctx context.Context,
	fn kv.RangeFunc,
) error {
	query, args, err := squirrel.
		Select("key", "value").
		From(kvTable).
		Where(squirrel.Eq{"keyspace": ks.Name}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("unable to build query: %w", err)
	}

	rows, err := ks.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var k, v []byte

		if err := rows.Scan(&k, &v); err != nil {
			return err
		}

		ok, err := fn(ctx, k, v)
		if !ok || err != nil {
			return err
		}
	}

	return rows.Err()
}

func (ks *keyspace) Close() error {
	return nil
}
