package mapper

import (
	"testing"
	"time"

	"ad-studio-be/internal/entity"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountOwnerRoundTrip(t *testing.T) {
	m := NewBillingMapper()

	userID := uuid.New()
	workspaceID := uuid.New()

	tests := []struct {
		name  string
		owner entity.AccountOwner
	}{
		{"user owner", entity.UserOwner(userID)},
		{"workspace owner", entity.WorkspaceOwner(workspaceID)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &entity.Account{
				Id:        uuid.New(),
				Owner:     tt.owner,
				Balance:   decimal.NewFromInt(42),
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}

			model := m.AccountToModel(acc)

			// Exactly one owner column set.
			assert.NotEqual(t, model.UserId == nil, model.WorkspaceId == nil)

			back := m.AccountToEntity(model)
			require.NotNil(t, back)
			assert.Equal(t, tt.owner, back.Owner)
			assert.True(t, back.Balance.Equal(acc.Balance))
		})
	}
}

func TestAuditDetailsRoundTrip(t *testing.T) {
	m := NewBillingMapper()

	log := &entity.AuditLog{
		Id:         uuid.New(),
		Actor:      "operator:1",
		Action:     "LEDGER_POSTED",
		EntityType: "ledger_transaction",
		EntityID:   uuid.New().String(),
		Details:    map[string]interface{}{"amount": "42", "reason": "goodwill"},
		CreatedAt:  time.Now(),
	}

	back := m.AuditToEntity(m.AuditToModel(log))
	require.NotNil(t, back)
	assert.Equal(t, log.Actor, back.Actor)
	assert.Equal(t, "42", back.Details["amount"])
	assert.Equal(t, "goodwill", back.Details["reason"])
}
