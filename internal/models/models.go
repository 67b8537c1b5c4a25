package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Staking record lifecycle. Cancelled is a terminal state reachable only by
// operator intervention; no API transition produces it.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

type User struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Username  string `json:"username" gorm:"size:150"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// Wallet maps a user to exactly one on-chain address. Solana addresses are
// base58-encoded 32-byte keys, at most 44 characters.
type Wallet struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"userId" gorm:"uniqueIndex"`
	Address   string    `json:"address" gorm:"uniqueIndex;size:44"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	User    User            `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Records []StakingRecord `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

type StakingRecord struct {
	ID                   uint            `json:"id" gorm:"primaryKey"`
	WalletID             uint            `json:"walletId" gorm:"index"`
	Amount               decimal.Decimal `json:"amount" gorm:"type:numeric(20,9)"`
	StartTime            time.Time       `json:"startTime" gorm:"index"`
	EndTime              *time.Time      `json:"endTime"`
	Status               string          `json:"status" gorm:"size:10;index;default:active"`
	Rewards              decimal.Decimal `json:"rewards" gorm:"type:numeric(20,9);default:0"`
	TransactionSignature string          `json:"transactionSignature" gorm:"uniqueIndex;size:88"`
	CreatedAt            time.Time
	UpdatedAt            time.Time

	Wallet Wallet `json:"-"`
}

// SolPrice is one append-only sample of the SOL/USD price feed.
type SolPrice struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	Timestamp time.Time       `json:"timestamp" gorm:"index"`
	PriceUSD  decimal.Decimal `json:"priceUsd" gorm:"type:numeric(20,2)"`
	CreatedAt time.Time
}
