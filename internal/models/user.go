package models

import (
	"time"
)

const (
	RoleIntern      = "intern"
	RoleSupervisor  = "supervisor"
	RoleCoordinator = "coordinator"
)

type User struct {
	ID           int       `json:"id" db:"id"`
	FullName     string    `json:"full_name" db:"full_name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
