package db

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sqlite", errors.New("UNIQUE constraint failed: products.sku_prefix"), true},
		{"postgres", errors.New(`duplicate key value violates unique constraint "products_sku_prefix_key"`), true},
		{"gorm sentinel", gorm.ErrDuplicatedKey, true},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := IsUniqueViolation(tc.err, ""); got != tc.want {
			t.Errorf("%s: IsUniqueViolation = %v, want %v", tc.name, got, tc.want)
		}
	}

	err := errors.New(`duplicate key value violates unique constraint "serialized_items_item_uid_key"`)
	if !IsUniqueViolation(err, "serialized_items_item_uid_key") {
		t.Fatal("expected match on constraint name")
	}
	if IsUniqueViolation(err, "sku_prefix") {
		t.Fatal("constraint name must narrow the match, not widen it")
	}

	notNull := errors.New("NOT NULL constraint failed: serialized_items.item_uid")
	if IsUniqueViolation(notNull, "item_uid") {
		t.Fatal("a non-unique error mentioning the column must not match")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(fmt.Errorf("loading product: %w", gorm.ErrRecordNotFound)) {
		t.Fatal("wrapped ErrRecordNotFound should match")
	}
	if IsNotFound(errors.New("other")) {
		t.Fatal("unrelated error should not match")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	if !IsForeignKeyViolation(errors.New("FOREIGN KEY constraint failed")) {
		t.Fatal("sqlite FK text should match")
	}
	if !IsForeignKeyViolation(errors.New(`update or delete on table "products" violates foreign key constraint`)) {
		t.Fatal("postgres FK text should match")
	}
	if IsForeignKeyViolation(nil) {
		t.Fatal("nil should not match")
	}
}
