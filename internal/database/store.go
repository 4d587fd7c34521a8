package database

import (
	"droply/internal/websocket"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool  *pgxpool.Pool
	wsHub *websocket.Hub
}

func NewStore(pool *pgxpool.Pool, wsHub *websocket.Hub) *PostgresStore {
	return &PostgresStore{
		pool:  pool,
		wsHub: wsHub,
	}
}

func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
