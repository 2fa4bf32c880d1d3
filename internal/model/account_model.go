package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account enforces owner-XOR at the storage level: exactly one of UserId /
// WorkspaceId is set, and each owner has at most one account.
type Account struct {
	Id          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId      *uuid.UUID      `gorm:"type:uuid;uniqueIndex:ux_accounts_user,where:user_id IS NOT NULL"`
	WorkspaceId *uuid.UUID      `gorm:"type:uuid;uniqueIndex:ux_accounts_workspace,where:workspace_id IS NOT NULL;check:chk_accounts_owner,(user_id IS NULL) <> (workspace_id IS NULL)"`
	Balance     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0;check:chk_accounts_balance,balance >= 0"`
	CreatedAt   time.Time       `gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime"`
}

func (Account) TableName() string {
	return "accounts"
}
