package user

import (
	"context"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=user

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (User, error)
	List(ctx context.Context, term string) ([]User, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (User, error)
}
