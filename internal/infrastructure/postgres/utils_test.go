package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/compras-api/internal/domain"
	"github.com/jhoicas/compras-api/pkg/config"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{codeUniqueViolation, domain.ErrDuplicate},
		{codeCheckViolation, domain.ErrValidation},
		{codeSerializationFailure, domain.ErrConcurrentModification},
		{codeDeadlockDetected, domain.ErrConcurrentModification},
		{codeLockNotAvailable, domain.ErrConcurrentModification},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			err := mapError("op", &pgconn.PgError{Code: tc.code})
			assert.ErrorIs(t, err, tc.want)
		})
	}

	plain := errors.New("conexión cerrada")
	assert.ErrorIs(t, mapError("op", plain), plain)
	assert.False(t, domain.IsRetryable(mapError("op", plain)))
	assert.NoError(t, mapError("op", nil))
}

func TestNullString(t *testing.T) {
	assert.Nil(t, nullString(""))
	assert.Equal(t, "x", *nullString("x"))
	assert.Equal(t, "", fromNullString(nil))
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db?sslmode=disable", migrateURL("postgres://u:p@h:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://u@h/db", migrateURL("postgresql://u@h/db"))
	assert.Equal(t, "pgx5://u@h/db", migrateURL("pgx5://u@h/db"))
}

func TestPoolConfig(t *testing.T) {
	pc, err := poolConfig(config.DBConfig{
		DatabaseURL: "postgres://u:p@db:5432/compras?sslmode=disable",
		MaxConns:    10,
		MinConns:    1,
		LockTimeout: 1500 * time.Millisecond,
	})

	require.NoError(t, err)
	assert.Equal(t, int32(10), pc.MaxConns)
	assert.Equal(t, int32(1), pc.MinConns)
	assert.Equal(t, "1500", pc.ConnConfig.RuntimeParams["lock_timeout"])
	assert.NotNil(t, pc.AfterConnect)

	_, err = poolConfig(config.DBConfig{DatabaseURL: "::no es un dsn"})
	assert.Error(t, err)
}
