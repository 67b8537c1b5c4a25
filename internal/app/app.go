package app

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/daffhaidar/solana-staking-app/internal/auth"
	"github.com/daffhaidar/solana-staking-app/internal/cache"
	"github.com/daffhaidar/solana-staking-app/internal/handlers"
	"github.com/daffhaidar/solana-staking-app/internal/models"
	"github.com/daffhaidar/solana-staking-app/internal/pricing"
	"github.com/daffhaidar/solana-staking-app/internal/solana"
	"github.com/daffhaidar/solana-staking-app/internal/staking"
	"github.com/daffhaidar/solana-staking-app/internal/util"
)

func mustEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func Run() error {
	_ = godotenv.Load()

	loc, err := time.LoadLocation(mustEnv("TZ", "UTC"))
	if err != nil {
		return err
	}
	util.SetLocation(loc)

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.InfoLevel)

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		mustEnv("DB_HOST", "localhost"),
		mustEnv("DB_USER", "postgres"),
		mustEnv("DB_PASSWORD", "postgres"),
		mustEnv("DB_NAME", "staking"),
		mustEnv("DB_PORT", "5432"),
		loc.String(),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(&models.User{}, &models.Wallet{}, &models.StakingRecord{}, &models.SolPrice{}); err != nil {
		return err
	}

	secret := mustEnv("JWT_SECRET", "")
	if secret == "" {
		secret = "dev-secret"
		logrus.Warn("JWT_SECRET not set, using the development secret")
	}

	var priceCache *cache.PriceCache
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		priceCache = cache.Connect(addr, time.Hour)
	}

	// Only the in-process client ships here; an RPC-backed client plugs in
	// behind the same interface.
	network := mustEnv("SOLANA_NETWORK", "local")
	if network != "local" {
		logrus.Warnf("no client for network %q, falling back to local", network)
	}
	chain := solana.NewLocalClient()

	feed := pricing.NewFeed(db, priceCache)
	ledger := staking.NewLedger(db, chain)

	r := gin.Default()
	h := handlers.New(ledger, feed, chain)
	h.RegisterRoutes(r, auth.Middleware([]byte(secret)))

	if mustEnv("PRICE_COLLECTOR", "on") != "off" {
		interval, err := time.ParseDuration(mustEnv("PRICE_INTERVAL", "1h"))
		if err != nil {
			return err
		}
		go pricing.StartCollector(feed, pricing.NewRandomWalk(), interval)
	}

	port := mustEnv("APP_PORT", "8080")
	logrus.Infof("listening on :%s", port)
	return r.Run(":" + port)
}
