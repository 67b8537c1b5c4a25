package staking

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/daffhaidar/solana-staking-app/internal/models"
	"github.com/daffhaidar/solana-staking-app/internal/solana"
	"github.com/daffhaidar/solana-staking-app/internal/util"
)

// 1% of the staked amount per day, accruing continuously.
var (
	rewardRate    = decimal.NewFromFloat(0.01)
	secondsPerDay = decimal.NewFromInt(86400)
)

// Ledger owns the wallet registry and the staking lifecycle. Every method
// takes the authenticated user id explicitly; nothing here reads ambient
// request state.
type Ledger struct {
	db    *gorm.DB
	chain solana.Client
}

func NewLedger(db *gorm.DB, chain solana.Client) *Ledger {
	return &Ledger{db: db, chain: chain}
}

// CurrentReward computes the reward accrued by rec as of now. It is a pure
// read: terminal records return their frozen reward, active records accrue
// amount * rate * elapsed days with the fractional remainder included.
// Nothing is persisted; only Unstake writes a reward back.
func CurrentReward(rec *models.StakingRecord, now time.Time) decimal.Decimal {
	if rec.Status != models.StatusActive {
		return rec.Rewards
	}
	elapsed := now.Sub(rec.StartTime)
	if elapsed <= 0 {
		return decimal.Zero
	}
	days := decimal.New(elapsed.Milliseconds(), -3).Div(secondsPerDay)
	return rec.Amount.Mul(rewardRate).Mul(days).Round(9)
}

// RegisterWallet creates the caller's wallet on first registration and
// overwrites its address on later calls. An address held by another user's
// wallet is a hard conflict.
func (l *Ledger) RegisterWallet(ctx context.Context, userID uint, username, address string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := models.User{ID: userID, Username: username}
		if err := tx.FirstOrCreate(&user, models.User{ID: userID}).Error; err != nil {
			return err
		}

		var other models.Wallet
		err := tx.Where("address = ? AND user_id <> ?", address, userID).First(&other).Error
		if err == nil {
			return ErrAddressTaken
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		err = tx.Where("user_id = ?", userID).First(&wallet).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			wallet = models.Wallet{UserID: userID, Address: address}
			return tx.Create(&wallet).Error
		}
		if err != nil {
			return err
		}
		wallet.Address = address
		wallet.UpdatedAt = util.Now()
		return tx.Save(&wallet).Error
	})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// WalletOf returns the caller's wallet.
func (l *Ledger) WalletOf(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// CreateStake submits a staking transaction for the caller's wallet and
// records it as active with zero reward.
func (l *Ledger) CreateStake(ctx context.Context, userID uint, amount decimal.Decimal) (*models.StakingRecord, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	wallet, err := l.WalletOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	signature, err := l.chain.SubmitStake(ctx, wallet.Address, amount)
	if err != nil {
		return nil, err
	}

	rec := models.StakingRecord{
		WalletID:             wallet.ID,
		Amount:               amount,
		StartTime:            util.Now(),
		Status:               models.StatusActive,
		Rewards:              decimal.Zero,
		TransactionSignature: signature,
	}
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.StakingRecord
		err := tx.Where("transaction_signature = ?", signature).First(&existing).Error
		if err == nil {
			return ErrDuplicateSignature
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&rec).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrDuplicateSignature
	}
	if err != nil {
		return nil, err
	}
	rec.Wallet = *wallet
	return &rec, nil
}

// ListStakes returns the caller's records, newest first.
func (l *Ledger) ListStakes(ctx context.Context, userID uint) ([]models.StakingRecord, error) {
	var recs []models.StakingRecord
	err := l.db.WithContext(ctx).
		Select("staking_records.*").
		Joins("JOIN wallets ON wallets.id = staking_records.wallet_id").
		Where("wallets.user_id = ?", userID).
		Preload("Wallet").
		Order("staking_records.start_time DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// GetStake fetches one record scoped to the caller's wallet. Records owned
// by other users are indistinguishable from missing ones.
func (l *Ledger) GetStake(ctx context.Context, userID, id uint) (*models.StakingRecord, error) {
	return l.getScoped(l.db.WithContext(ctx), userID, id)
}

func (l *Ledger) getScoped(tx *gorm.DB, userID, id uint) (*models.StakingRecord, error) {
	var rec models.StakingRecord
	err := tx.
		Select("staking_records.*").
		Joins("JOIN wallets ON wallets.id = staking_records.wallet_id").
		Where("staking_records.id = ? AND wallets.user_id = ?", id, userID).
		Preload("Wallet").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Unstake completes an active record: the reward is computed one final time,
// the status flips to completed and the end time is set. The transition is a
// compare-and-swap on status so concurrent unstakes cannot both succeed.
func (l *Ledger) Unstake(ctx context.Context, userID, id uint) (*models.StakingRecord, error) {
	rec, err := l.GetStake(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.StatusActive {
		return nil, ErrNotActive
	}

	now := util.Now()
	final := CurrentReward(rec, now)
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.StakingRecord{}).
			Where("id = ? AND status = ?", rec.ID, models.StatusActive).
			Updates(map[string]interface{}{
				"status":   models.StatusCompleted,
				"end_time": now,
				"rewards":  final,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotActive
		}
		// Submit only after winning the row; a failed submit rolls the
		// transition back.
		if _, err := l.chain.SubmitUnstake(ctx, rec.Wallet.Address, rec.TransactionSignature); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	rec.Status = models.StatusCompleted
	rec.EndTime = &now
	rec.Rewards = final
	return rec, nil
}
