// Package repository contains the gorm-backed persistence adapters.
// Repositories return ErrNotFound for missing rows and wrapped database
// errors otherwise; translation into the service error taxonomy happens one
// layer up.
package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// requireRow returns ErrNotFound unless a row matches the condition.
// MySQL reports zero affected rows for an update that leaves values
// unchanged, so RowsAffected cannot distinguish a no-op update from a
// missing row; updates that must fail on missing rows check existence
// first inside their transaction.
func requireRow(tx *gorm.DB, modelValue any, query string, args ...any) error {
	var count int64
	if err := tx.Model(modelValue).Where(query, args...).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}
