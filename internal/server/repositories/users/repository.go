// Package users declares and implements persistence of authority accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/whattodo/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills its ID. A taken username yields
	// common.ErrorUserExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
}
