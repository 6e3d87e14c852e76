package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"paper-trader/auth"
	"paper-trader/config"
	"paper-trader/database"
	"paper-trader/handlers"
	"paper-trader/ledger"
	"paper-trader/quotes"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using environment as-is")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("configuration error: ", err)
	}

	db, err := config.ConnectDB(cfg)
	if err != nil {
		log.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("failed to get database instance: ", err)
	}
	defer sqlDB.Close()

	rdb, err := config.ConnectRedis(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer rdb.Close()

	repo := database.NewGorm(db)
	if err := repo.Migrate(); err != nil {
		log.Fatal("failed to migrate models: ", err)
	}

	quoteClient := quotes.NewClient(cfg.AlphaVantageKey,
		quotes.WithTimeout(cfg.QuoteTimeout),
		quotes.WithCache(rdb, cfg.QuoteCacheTTL),
	)

	core := ledger.New(repo, quoteClient)
	authSvc := auth.NewService(repo, cfg.StartingCash)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL, rdb)

	router := gin.Default()
	handlers.New(core, authSvc, tokens, quoteClient).Register(router, cfg.JWTSecret)

	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatal(err)
	}
}
