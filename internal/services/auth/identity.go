package auth

import (
	"context"

	"fee-management-backend/internal/models"

	"github.com/google/uuid"
)

// Identity is the verified caller of an operation.
type Identity struct {
	ID         uuid.UUID `json:"id"`
	Role       string    `json:"role"`
	Name       string    `json:"name"`
	RollNumber string    `json:"rollNumber,omitempty"`
	Email      string    `json:"email,omitempty"`
}

func (i Identity) IsStudent() bool {
	return i.Role == models.RoleStudent
}

// IsReviewer reports whether the caller may decide transactions and
// answer complaints.
func (i Identity) IsReviewer() bool {
	return i.Role == models.RoleEmployee || i.Role == models.RoleAdmin
}

func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// CanViewStudent allows reviewers and the student themself.
func (i Identity) CanViewStudent(rollNumber string) bool {
	return i.IsReviewer() || (i.IsStudent() && i.RollNumber == rollNumber)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
