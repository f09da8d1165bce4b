package postgres

import (
	"context"

	"github.com/freshpress/laundromat-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type notificationsRepo struct{ pool *pgxpool.Pool }

func (r *notificationsRepo) Create(ctx context.Context, n models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notifications(id, user_id, message, kind, link, read) VALUES($1,$2,$3,$4,$5,$6)`,
		n.ID, n.UserID, n.Message, n.Kind, n.Link, n.Read,
	)
	return err
}

func (r *notificationsRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, message, kind, link, read, created_at
		   FROM notifications
		  WHERE user_id=$1
		  ORDER BY created_at DESC
		  LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Kind, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
