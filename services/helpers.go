package services

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	apperrors "github.com/Vaibhavdev309/tapestry/common/errors"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func parseObjectID(hex, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperrors.Validation("invalid %s", what)
	}
	return id, nil
}

// normalizePage clamps page and limit to sane bounds.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}
