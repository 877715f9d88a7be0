package repository

import (
	"database/sql"
	"errors"
	"strings"

	auth "github.com/goliatone/go-auth-core"
	repo "github.com/goliatone/go-repository-bun"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repo.IsRecordNotFound(err)
}

// isUniqueViolation recognizes unique constraint failures from pgx, lib/pq
// and both sqlite drivers behind sqliteshim.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// translate maps driver errors to the auth error values. Errors it does not
// recognize are returned as is and classified by the core.
func translate(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if notFound != nil && isNotFound(err) {
		return notFound
	}
	if pgconn.Timeout(err) {
		return auth.NewTransientError(err)
	}
	return err
}
