package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type AccountRepository interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	FindUserID(ctx context.Context, name, tel string) (string, error)
	// TelTaken reports whether a user other than exceptUserID owns tel
	TelTaken(ctx context.Context, tel, exceptUserID string) (bool, error)
	// UpdateUser overwrites profile fields; the password hash is only written when non-empty
	UpdateUser(ctx context.Context, user domain.User) error
}

type BoardRepository interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
	CreateQuestion(ctx context.Context, q domain.Question) (int64, error)
	CreateAnswer(ctx context.Context, a domain.Answer) (int64, error)
}

type EmployeeRepository interface {
	CreateEmployee(ctx context.Context, e domain.Employee) error
	DeleteEmployee(ctx context.Context, empNo int64) error
	ListEmployees(ctx context.Context, filter domain.EmployeeFilter) ([]domain.Employee, error)
}
