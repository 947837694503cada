package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrDuplicateCode — код подтверждения уже занят.
	ErrDuplicateCode = errors.New("duplicate verification code")

	// ErrInvalidState — операция невозможна в текущем состоянии.
	ErrInvalidState = errors.New("invalid state")

	// ErrNotClaimed — запись не pending или уже захвачена другим исполнителем.
	ErrNotClaimed = errors.New("schedule record not claimed")
)

const (
	pgUniqueViolation = "23505"

	constraintGrantCode   = "coupon_grants_code_uq"
	constraintActiveGrant = "coupon_grants_active_uq"
)

// mapUniqueViolation превращает нарушение уникальности Postgres в ошибку репозитория.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintGrantCode:
		return ErrDuplicateCode
	default:
		return ErrAlreadyExists
	}
}
