package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OwnerKind string

const (
	OwnerKindUser      OwnerKind = "user"
	OwnerKindWorkspace OwnerKind = "workspace"
)

// AccountOwner is a tagged union: an account belongs to exactly one user or
// exactly one workspace, never both and never neither.
type AccountOwner struct {
	Kind OwnerKind
	ID   uuid.UUID
}

func UserOwner(id uuid.UUID) AccountOwner {
	return AccountOwner{Kind: OwnerKindUser, ID: id}
}

func WorkspaceOwner(id uuid.UUID) AccountOwner {
	return AccountOwner{Kind: OwnerKindWorkspace, ID: id}
}

// Account is a token/credit balance holder. Created lazily on first use,
// never deleted. Balance is always the sum of its transaction amounts and
// never negative.
type Account struct {
	Id        uuid.UUID
	Owner     AccountOwner
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}
