package main

import (
	"log"
	"os"

	"github.com/daffhaidar/solana-staking-app/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	_ = os.Stdout.Sync()
}
