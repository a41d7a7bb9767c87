package models

import (
	"time"

	"github.com/google/uuid"
)

// Coin ledger entry types. Amount is signed: debits are negative.
const (
	CreditEntrySignupBonus     = "signup_bonus"
	CreditEntryTaskEscrow      = "task_escrow"
	CreditEntryTaskEarning     = "task_earning"
	CreditEntryTaskRefund      = "task_refund"
	CreditEntryWithdrawal      = "withdrawal"
	CreditEntryCoinPurchase    = "coin_purchase"
	CreditEntryAdminAdjustment = "admin_adjustment"
)

type CreditLedger struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"account_id"`
	TaskID       *uuid.UUID `json:"task_id,omitempty"`
	ReferenceID  *uuid.UUID `json:"reference_id,omitempty"`
	EntryType    string     `json:"entry_type"`
	Amount       int64      `json:"amount"`
	BalanceAfter int64      `json:"balance_after"`
	CreatedAt    time.Time  `json:"created_at"`
}
