package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/daffhaidar/solana-staking-app/internal/auth"
	"github.com/daffhaidar/solana-staking-app/internal/models"
	"github.com/daffhaidar/solana-staking-app/internal/pricing"
	"github.com/daffhaidar/solana-staking-app/internal/solana"
	"github.com/daffhaidar/solana-staking-app/internal/staking"
	"github.com/daffhaidar/solana-staking-app/internal/util"
)

type Handler struct {
	ledger *staking.Ledger
	feed   *pricing.Feed
	chain  solana.Client
}

func New(ledger *staking.Ledger, feed *pricing.Feed, chain solana.Client) *Handler {
	return &Handler{ledger: ledger, feed: feed, chain: chain}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, authMW gin.HandlerFunc) {
	wallets := r.Group("/wallets", authMW)
	wallets.POST("/verify_signature", h.verifySignature)
	wallets.GET("/", h.getWallet)

	stakes := r.Group("/staking", authMW)
	stakes.GET("/", h.listStakes)
	stakes.POST("/", h.createStake)
	stakes.GET("/:id", h.getStake)
	stakes.POST("/:id/unstake", h.unstake)

	prices := r.Group("/prices", authMW)
	prices.GET("/", h.recentPrices)
	prices.GET("/latest", h.latestPrice)

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
}

type walletResponse struct {
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type stakingResponse struct {
	ID                   uint            `json:"id"`
	WalletAddress        string          `json:"wallet_address"`
	Amount               decimal.Decimal `json:"amount"`
	StartTime            time.Time       `json:"start_time"`
	EndTime              *time.Time      `json:"end_time"`
	Status               string          `json:"status"`
	Rewards              decimal.Decimal `json:"rewards"`
	TransactionSignature string          `json:"transaction_signature"`
	CurrentRewards       decimal.Decimal `json:"current_rewards"`
}

type priceResponse struct {
	Timestamp time.Time       `json:"timestamp"`
	PriceUSD  decimal.Decimal `json:"price_usd"`
}

func walletView(w *models.Wallet) walletResponse {
	return walletResponse{Address: w.Address, CreatedAt: w.CreatedAt, UpdatedAt: w.UpdatedAt}
}

func stakingView(rec *models.StakingRecord, now time.Time) stakingResponse {
	return stakingResponse{
		ID:                   rec.ID,
		WalletAddress:        rec.Wallet.Address,
		Amount:               rec.Amount,
		StartTime:            rec.StartTime,
		EndTime:              rec.EndTime,
		Status:               rec.Status,
		Rewards:              rec.Rewards,
		TransactionSignature: rec.TransactionSignature,
		CurrentRewards:       staking.CurrentReward(rec, now),
	}
}

func priceView(p models.SolPrice) priceResponse {
	return priceResponse{Timestamp: p.Timestamp, PriceUSD: p.PriceUSD}
}

func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"status": "error", "message": message})
}

// fail maps domain sentinels to HTTP statuses; anything unrecognized is a 500.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, staking.ErrInvalidAmount),
		errors.Is(err, staking.ErrNotActive),
		errors.Is(err, solana.ErrBadSignature),
		errors.Is(err, solana.ErrBadPublicKey):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, staking.ErrWalletNotFound),
		errors.Is(err, staking.ErrRecordNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, staking.ErrDuplicateSignature),
		errors.Is(err, staking.ErrAddressTaken):
		respondError(c, http.StatusConflict, err.Error())
	default:
		logrus.WithError(err).Error("request failed")
		respondError(c, http.StatusInternalServerError, "internal")
	}
}

func identity(c *gin.Context) (auth.Identity, bool) {
	id, ok := auth.FromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "no identity on request")
	}
	return id, ok
}

type verifySignatureReq struct {
	Signature string `json:"signature" binding:"required"`
	Message   string `json:"message" binding:"required"`
	PublicKey string `json:"public_key" binding:"required,max=44"`
}

func (h *Handler) verifySignature(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req verifySignatureReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.chain.VerifySignature(req.Signature, req.Message, req.PublicKey); err != nil {
		h.fail(c, err)
		return
	}
	wallet, err := h.ledger.RegisterWallet(c.Request.Context(), id.UserID, id.Username, req.PublicKey)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "wallet": walletView(wallet)})
}

func (h *Handler) getWallet(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	wallet, err := h.ledger.WalletOf(c.Request.Context(), id.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, walletView(wallet))
}

func (h *Handler) listStakes(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	recs, err := h.ledger.ListStakes(c.Request.Context(), id.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	now := util.Now()
	out := make([]stakingResponse, 0, len(recs))
	for i := range recs {
		out = append(out, stakingView(&recs[i], now))
	}
	c.JSON(http.StatusOK, out)
}

type createStakeReq struct {
	Amount string `json:"amount" binding:"required"`
}

func (h *Handler) createStake(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req createStakeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondError(c, http.StatusBadRequest, "amount must be a decimal number")
		return
	}
	rec, err := h.ledger.CreateStake(c.Request.Context(), id.UserID, amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, stakingView(rec, util.Now()))
}

func recordID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid record id")
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) getStake(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	recID, ok := recordID(c)
	if !ok {
		return
	}
	rec, err := h.ledger.GetStake(c.Request.Context(), id.UserID, recID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stakingView(rec, util.Now()))
}

func (h *Handler) unstake(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	recID, ok := recordID(c)
	if !ok {
		return
	}
	rec, err := h.ledger.Unstake(c.Request.Context(), id.UserID, recID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "unstaking successful",
		"rewards": rec.Rewards,
	})
}

func (h *Handler) recentPrices(c *gin.Context) {
	if _, ok := identity(c); !ok {
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(pricing.DefaultWindowDays)))
	if err != nil || days < 1 {
		respondError(c, http.StatusBadRequest, "days must be a positive integer")
		return
	}
	samples, err := h.feed.RecentPrices(c.Request.Context(), days)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]priceResponse, 0, len(samples))
	for _, s := range samples {
		out = append(out, priceView(s))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) latestPrice(c *gin.Context) {
	if _, ok := identity(c); !ok {
		return
	}
	sample, err := h.feed.Latest(c.Request.Context())
	if errors.Is(err, pricing.ErrNoSamples) {
		respondError(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, priceView(*sample))
}
