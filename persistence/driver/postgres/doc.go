// Package postgres provides a key/value store backed by a PostgreSQL table.
package postgres
