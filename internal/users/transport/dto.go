package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateUserRequest struct {
	Name     string  `json:"name" validate:"required,min=1,max=150"`
	Email    string  `json:"email" validate:"required,email"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,min=5,max=20"`
	Password string  `json:"password" validate:"required,min=8"`
	Role     string  `json:"role" validate:"required,oneof=admin sales_agent developer"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=150"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,min=5,max=20"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8"`
	Role     *string `json:"role,omitempty" validate:"omitempty,oneof=admin sales_agent developer"`
}

type ListUsersRequest struct {
	Search string `form:"search" validate:"max=100"`
	Role   string `form:"role" validate:"omitempty,oneof=admin sales_agent developer"`
	Page   int    `form:"page" validate:"min=0"`
	Limit  int    `form:"limit" validate:"min=0,max=100"`
}

type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone *string   `json:"phone,omitempty"`
	Role  string    `json:"role"`
	// AssignedLeadsCount is derived on read, never maintained as a counter.
	AssignedLeadsCount int        `json:"assignedLeadsCount"`
	LastLogin          *time.Time `json:"lastLogin,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type UserListResponse struct {
	Data       []UserResponse `json:"data"`
	Pagination Pagination     `json:"pagination"`
}
