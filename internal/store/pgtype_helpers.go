package store

import (
	"errors"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// sessionParam stores uint64 session ids in a BIGINT column.
func sessionParam(id uint64) pgtype.Int8 {
	if id > math.MaxInt64 {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: int64(id), Valid: true}
}

func sessionVal(v pgtype.Int8) uint64 {
	if !v.Valid || v.Int64 < 0 {
		return 0
	}
	return uint64(v.Int64)
}
