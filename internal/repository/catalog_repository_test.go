package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, isUniqueViolation(errors.New(
		`ERROR: duplicate key value violates unique constraint "idx_products_supplier_product" (SQLSTATE 23505)`)))
}

// Concurrent imports of two different products with the same name collide
// on the slug index, not the supplier id index. The violated constraint
// has to be readable from the error so the right recovery runs.
func TestViolatedConstraintNamesTheIndex(t *testing.T) {
	err := errors.New(
		`ERROR: duplicate key value violates unique constraint "idx_products_slug" (SQLSTATE 23505)`)
	assert.Equal(t, productSlugIndex, violatedConstraint(err))

	err = errors.New(
		`ERROR: duplicate key value violates unique constraint "idx_products_supplier_product" (SQLSTATE 23505)`)
	assert.Equal(t, "idx_products_supplier_product", violatedConstraint(err))

	assert.Equal(t, "", violatedConstraint(nil))
	assert.Equal(t, "", violatedConstraint(errors.New("duplicate key value")))
	assert.Equal(t, "", violatedConstraint(gorm.ErrDuplicatedKey))
}
