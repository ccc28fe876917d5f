package models

import (
	"github.com/google/uuid"
)

// User is a verified identity handed to this service by the auth gateway.
// Account storage and credential checks live in the auth service.
type User struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
