// Package repository implements domain repository interfaces using SQLite.
package repository

import (
	"database/sql"
	"errors"
	"strings"

	"gridgate/internal/domain"
)

func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Message: "resource not found"}
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return &domain.ConflictError{Message: "resource already exists"}
	}
	if strings.Contains(msg, "database is locked") || errors.Is(err, sql.ErrConnDone) {
		return domain.ErrUnavailable(err, "store temporarily unavailable")
	}
	return err
}

func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
