package models

import "time"

type UserRole string

const (
	RoleAdmin        UserRole = "admin"
	RoleQueueManager UserRole = "queue_manager"
	RoleScorekeeper  UserRole = "scorekeeper"
)

// User — учётка персонала (queue desk, судьи). Игроки сюда не попадают.
type User struct {
	ID           int       `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         UserRole  `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
