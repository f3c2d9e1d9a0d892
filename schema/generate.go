// Package schema creates tables for tombstone models.
package schema

import (
	"context"
	"fmt"

	"github.com/burugo/tombstone"
	"github.com/burugo/tombstone/internal/schema"
)

// CreateTableSQL returns the statements creating T's table in the dialect
// of s, using the marker and sentinel columns of s's Policy.
func CreateTableSQL[T any](s *tombstone.Store) ([]string, error) {
	th, err := tombstone.Use[T](s)
	if err != nil {
		return nil, err
	}
	return schema.GenerateCreateTableSQL(th.Info(), s.DB().DialectName(), schema.TableOptions{
		Marker:   s.Policy().Field(),
		Sentinel: s.Policy().Sentinel(),
	})
}

// CreateTable runs the statements of CreateTableSQL on s's adapter.
func CreateTable[T any](ctx context.Context, s *tombstone.Store) error {
	stmts, err := CreateTableSQL[T](s)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := s.DB().Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}
