package postgres

import (
	repo "github.com/freshpress/laundromat-backend/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repositories struct {
	Users         repo.Users
	Wallets       repo.Wallets
	Transactions  repo.Transactions
	Notifications repo.Notifications
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Users:         &usersRepo{pool},
		Wallets:       &walletsRepo{pool},
		Transactions:  &transactionsRepo{pool},
		Notifications: &notificationsRepo{pool},
	}
}
