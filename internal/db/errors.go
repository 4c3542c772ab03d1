package db

import (
	"errors"

	"github.com/uptrace/bun/driver/pgdriver"
)

const uniqueViolation = "23505"

// UniqueViolation reports whether err is a unique constraint violation and returns the name
// of the violated constraint.
func UniqueViolation(err error) (string, bool) {
	var pgErr pgdriver.Error
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Field('C') != uniqueViolation {
		return "", false
	}
	return pgErr.Field('n'), true
}
