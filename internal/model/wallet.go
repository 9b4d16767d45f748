package model

import "time"

// Wallet хранит денежный баланс пользователя в тоа.
// Balance включает зарезервированные средства, доступно Balance - Reserved.
type Wallet struct {
	UserID       int64     `json:"user_id"`
	BalanceToea  int64     `json:"balance_toea"`
	ReservedToea int64     `json:"reserved_toea"`
	Currency     string    `json:"currency"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AvailableToea возвращает незарезервированную часть баланса.
func (w *Wallet) AvailableToea() int64 {
	return w.BalanceToea - w.ReservedToea
}

// WalletTxType описывает вид движения по кошельку.
type WalletTxType string

const (
	WalletTxDeposit WalletTxType = "deposit"
	WalletTxHold    WalletTxType = "hold"
	WalletTxRelease WalletTxType = "release"
	WalletTxCapture WalletTxType = "capture"
	WalletTxRefund  WalletTxType = "refund"
)

// Типы ссылок движений кошелька.
const (
	RefDepositIntent = "deposit_intent"
	RefHold          = "hold"
	RefRefund        = "refund"
)

// WalletEntry описывает запрос на изменение кошелька.
type WalletEntry struct {
	UserID        int64
	Type          WalletTxType
	BalanceDelta  int64
	ReservedDelta int64
	ReferenceType string
	ReferenceID   string
	Description   string
}

// WalletTransaction является неизменяемой строкой журнала кошелька.
type WalletTransaction struct {
	ID            int64        `json:"id"`
	UserID        int64        `json:"user_id"`
	Type          WalletTxType `json:"type"`
	BalanceDelta  int64        `json:"balance_delta_toea"`
	ReservedDelta int64        `json:"reserved_delta_toea"`
	BalanceAfter  int64        `json:"balance_after_toea"`
	ReservedAfter int64        `json:"reserved_after_toea"`
	ReferenceType string       `json:"reference_type,omitempty"`
	ReferenceID   string       `json:"reference_id,omitempty"`
	Description   string       `json:"description,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// DepositStatus описывает статус намерения пополнения.
type DepositStatus string

const (
	DepositPending DepositStatus = "pending"
	DepositMatched DepositStatus = "matched"
	DepositExpired DepositStatus = "expired"
)

// DepositIntent описывает ожидаемый банковский перевод.
type DepositIntent struct {
	ID                int64         `json:"id"`
	UserID            int64         `json:"user_id"`
	AmountToea        int64         `json:"amount_toea"`
	Currency          string        `json:"currency"`
	Reference         string        `json:"reference"`
	Status            DepositStatus `json:"status"`
	BankReference     string        `json:"bank_reference,omitempty"`
	MatchedAmountToea int64         `json:"matched_amount_toea,omitempty"`
	MatchedBy         *int64        `json:"matched_by,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	MatchedAt         *time.Time    `json:"matched_at,omitempty"`
}

// HoldStatus описывает статус резерва.
type HoldStatus string

const (
	HoldActive   HoldStatus = "held"
	HoldCaptured HoldStatus = "captured"
	HoldReleased HoldStatus = "released"
)

// WalletHold описывает зарезервированную сумму.
type WalletHold struct {
	ID          string     `json:"id"`
	UserID      int64      `json:"user_id"`
	AmountToea  int64      `json:"amount_toea"`
	Status      HoldStatus `json:"status"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
}

// RefundStatus описывает статус возврата.
type RefundStatus string

const (
	RefundPending  RefundStatus = "pending"
	RefundApproved RefundStatus = "approved"
	RefundRejected RefundStatus = "rejected"
)

// Refund описывает запрос на возврат списания.
type Refund struct {
	ID            int64        `json:"id"`
	UserID        int64        `json:"user_id"`
	TransactionID int64        `json:"transaction_id"`
	AmountToea    int64        `json:"amount_toea"`
	Reason        string       `json:"reason"`
	Status        RefundStatus `json:"status"`
	ReviewedBy    *int64       `json:"reviewed_by,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	ReviewedAt    *time.Time   `json:"reviewed_at,omitempty"`
}
