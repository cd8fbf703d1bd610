package repository

import (
	"context"

	"cover-studio/internal/domain/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	Save(ctx context.Context, tx Tx, user *model.User) error
}
