package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/daffhaidar/solana-staking-app/internal/auth"
	"github.com/daffhaidar/solana-staking-app/internal/models"
	"github.com/daffhaidar/solana-staking-app/internal/pricing"
	"github.com/daffhaidar/solana-staking-app/internal/solana"
	"github.com/daffhaidar/solana-staking-app/internal/staking"
	"github.com/daffhaidar/solana-staking-app/internal/util"
)

var testSecret = []byte("test-secret")

type testServer struct {
	router *gin.Engine
	feed   *pricing.Feed
	db     *gorm.DB
}

func setupServer(t *testing.T, chain solana.Client) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Wallet{}, &models.StakingRecord{}, &models.SolPrice{}))

	feed := pricing.NewFeed(db, nil)
	ledger := staking.NewLedger(db, chain)

	r := gin.New()
	h := New(ledger, feed, chain)
	h.RegisterRoutes(r, auth.Middleware(testSecret))

	return &testServer{router: r, feed: feed, db: db}
}

func (s *testServer) do(t *testing.T, userID uint, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, err := auth.Token(testSecret, auth.Identity{UserID: userID, Username: fmt.Sprintf("user%d", userID)}, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func registerWallet(t *testing.T, s *testServer, userID uint, address string) {
	t.Helper()
	w := s.do(t, userID, http.MethodPost, "/wallets/verify_signature", gin.H{
		"signature":  "sig",
		"message":    "msg",
		"public_key": address,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestVerifySignatureRegistersWallet(t *testing.T) {
	s := setupServer(t, &solana.Mock{})

	w := s.do(t, 1, http.MethodPost, "/wallets/verify_signature", gin.H{
		"signature":  "sig",
		"message":    "msg",
		"public_key": "Addr1111111111111111111111111111",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	require.Equal(t, "success", body["status"])
	wallet := body["wallet"].(map[string]any)
	require.Equal(t, "Addr1111111111111111111111111111", wallet["address"])

	// Re-registering overwrites the address.
	w = s.do(t, 1, http.MethodPost, "/wallets/verify_signature", gin.H{
		"signature":  "sig",
		"message":    "msg",
		"public_key": "Addr2222222222222222222222222222",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, 1, http.MethodGet, "/wallets/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Addr2222222222222222222222222222", decodeJSON(t, w)["address"])
}

func TestVerifySignatureFailures(t *testing.T) {
	s := setupServer(t, &solana.Mock{VerifyErr: solana.ErrBadSignature})

	w := s.do(t, 1, http.MethodPost, "/wallets/verify_signature", gin.H{
		"signature":  "sig",
		"message":    "msg",
		"public_key": "Addr1111111111111111111111111111",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "error", decodeJSON(t, w)["status"])

	// Missing fields are rejected before the chain is consulted.
	w = s.do(t, 1, http.MethodPost, "/wallets/verify_signature", gin.H{"signature": "sig"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWalletAddressConflict(t *testing.T) {
	s := setupServer(t, &solana.Mock{})

	registerWallet(t, s, 1, "SharedAddr111111111111111111111")
	w := s.do(t, 2, http.MethodPost, "/wallets/verify_signature", gin.H{
		"signature":  "sig",
		"message":    "msg",
		"public_key": "SharedAddr111111111111111111111",
	})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestStakingLifecycle(t *testing.T) {
	s := setupServer(t, &solana.Mock{})
	registerWallet(t, s, 1, "Addr1111111111111111111111111111")

	w := s.do(t, 1, http.MethodPost, "/staking/", gin.H{"amount": "100"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeJSON(t, w)
	require.Equal(t, models.StatusActive, created["status"])
	require.Equal(t, "0", created["rewards"])
	require.Equal(t, "Addr1111111111111111111111111111", created["wallet_address"])
	require.NotEmpty(t, created["transaction_signature"])
	recID := uint(created["id"].(float64))

	w = s.do(t, 1, http.MethodGet, "/staking/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)

	// Backdate the stake one day so the frozen reward is visible.
	require.NoError(t, s.db.Model(&models.StakingRecord{}).
		Where("id = ?", recID).
		Update("start_time", util.Now().Add(-24*time.Hour)).Error)

	w = s.do(t, 1, http.MethodPost, fmt.Sprintf("/staking/%d/unstake", recID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decodeJSON(t, w)
	require.Equal(t, "success", done["status"])
	rewards, err := decimal.NewFromString(done["rewards"].(string))
	require.NoError(t, err)
	require.True(t, rewards.GreaterThanOrEqual(decimal.NewFromInt(1)), "got %s", rewards)

	// Unstaking twice: second call is rejected, reward stays frozen.
	w = s.do(t, 1, http.MethodPost, fmt.Sprintf("/staking/%d/unstake", recID), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "staking record is not active", decodeJSON(t, w)["message"])

	w = s.do(t, 1, http.MethodGet, fmt.Sprintf("/staking/%d", recID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	after := decodeJSON(t, w)
	require.Equal(t, models.StatusCompleted, after["status"])
	require.Equal(t, done["rewards"], after["rewards"])
	require.Equal(t, after["rewards"], after["current_rewards"])
	require.NotNil(t, after["end_time"])
}

func TestCreateStakeRejections(t *testing.T) {
	s := setupServer(t, &solana.Mock{})

	// No wallet yet.
	w := s.do(t, 1, http.MethodPost, "/staking/", gin.H{"amount": "10"})
	require.Equal(t, http.StatusNotFound, w.Code)

	registerWallet(t, s, 1, "Addr1111111111111111111111111111")

	w = s.do(t, 1, http.MethodPost, "/staking/", gin.H{"amount": "0"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, 1, http.MethodPost, "/staking/", gin.H{"amount": "-3"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, 1, http.MethodPost, "/staking/", gin.H{"amount": "not-a-number"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDuplicateSignatureConflict(t *testing.T) {
	s := setupServer(t, &solana.Mock{Signatures: []string{"dup", "dup"}})
	registerWallet(t, s, 1, "Addr1111111111111111111111111111")

	w := s.do(t, 1, http.MethodPost, "/staking/", gin.H{"amount": "10"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(t, 1, http.MethodPost, "/staking/", gin.H{"amount": "20"})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestStakeScopedToOwner(t *testing.T) {
	s := setupServer(t, &solana.Mock{})
	registerWallet(t, s, 1, "Addr1111111111111111111111111111")
	registerWallet(t, s, 2, "Addr2222222222222222222222222222")

	w := s.do(t, 1, http.MethodPost, "/staking/", gin.H{"amount": "10"})
	require.Equal(t, http.StatusCreated, w.Code)
	recID := uint(decodeJSON(t, w)["id"].(float64))

	w = s.do(t, 2, http.MethodGet, fmt.Sprintf("/staking/%d", recID), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, 2, http.MethodPost, fmt.Sprintf("/staking/%d/unstake", recID), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPricesWindow(t *testing.T) {
	s := setupServer(t, &solana.Mock{})
	ctx := context.Background()

	for _, hoursAgo := range []int{97, 73, 49, 25, 1} {
		_, err := s.feed.AppendAt(ctx, util.Now().Add(-time.Duration(hoursAgo)*time.Hour), decimal.NewFromInt(100))
		require.NoError(t, err)
	}

	w := s.do(t, 1, http.MethodGet, "/prices/?days=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 3)

	// Default window is 7 days.
	w = s.do(t, 1, http.MethodGet, "/prices/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 5)

	w = s.do(t, 1, http.MethodGet, "/prices/?days=abc", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, 1, http.MethodGet, "/prices/?days=-1", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLatestPrice(t *testing.T) {
	s := setupServer(t, &solana.Mock{})

	w := s.do(t, 1, http.MethodGet, "/prices/latest", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	_, err := s.feed.Append(context.Background(), decimal.RequireFromString("142.35"))
	require.NoError(t, err)

	w = s.do(t, 1, http.MethodGet, "/prices/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "142.35", decodeJSON(t, w)["price_usd"])
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	s := setupServer(t, &solana.Mock{})

	for _, path := range []string{"/wallets/", "/staking/", "/prices/"} {
		w := s.do(t, 0, http.MethodGet, path, nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestHealth(t *testing.T) {
	s := setupServer(t, &solana.Mock{})
	w := s.do(t, 0, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"ok":true}`, w.Body.String())
}
