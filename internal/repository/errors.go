package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/yourorg/rentledger/internal/domain"
)

const pqUniqueViolation = "23505"

// translateError maps driver errors onto the domain taxonomy.
func translateError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFoundf("%s not found", entity)
	}
	if isUniqueViolation(err) {
		return &domain.Error{Kind: domain.KindConflict, Message: "duplicate " + entity, Err: err}
	}
	return fmt.Errorf("%s: %w", entity, err)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func newID() string {
	return uuid.NewString()
}
