package main

import (
	"context"
	"flag"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-cart/internal/app"
	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/kv"
	"github.com/noah-isme/toko-cart/internal/obs"
)

type demoItem struct {
	Name     string
	Price    float64
	Quantity int
}

var demoCart = []demoItem{
	{"Margherita Pizza", 9.99, 2},
	{"Caesar Salad", 6.50, 1},
	{"Garlic Bread", 3.25, 1},
	{"Lemonade", 2.75, 3},
}

func main() {
	sessionID := flag.String("session", "", "cart session to seed (a new one is minted when empty)")
	reset := flag.Bool("reset", true, "clear the cart before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.Component(obs.NewLogger(cfg.LogFormat, cfg.LogLevel), "seeder")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deps, err := app.Open(ctx, cfg, logger, app.Options{ApplicationName: "toko-cart-seeder"})
	if err != nil {
		logger.Fatal().Err(err).Str("storage", cfg.Storage).Msg("open dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()
	if cfg.Storage == config.StorageMemory {
		logger.Warn().Msg("memory storage does not outlive this process; seeded cart will be discarded")
	}

	id := *sessionID
	if id == "" {
		id = uuid.NewString()
	}
	store := cart.NewStore(cart.Options{
		KV:     deps.KV,
		Key:    kv.PrefixKey(id, cfg.CartStorageKey),
		ID:     id,
		Logger: logger,
		OnWarning: func(_ context.Context, err error) {
			logger.Fatal().Err(err).Msg("persist demo cart")
		},
	})
	if err := store.Load(ctx); err != nil {
		logger.Fatal().Err(err).Msg("load cart")
	}
	if *reset {
		store.Clear(ctx)
	}
	for _, item := range demoCart {
		if err := store.AddItem(ctx, item.Name, item.Price); err != nil {
			logger.Fatal().Err(err).Str("item", item.Name).Msg("add demo item")
		}
		if item.Quantity > 1 {
			store.AdjustQuantity(ctx, item.Name, item.Quantity-1)
		}
	}

	totals := store.Totals()
	logger.Info().
		Str("session_id", id).
		Str("key", store.Key()).
		Int("item_count", totals.ItemCount).
		Str("total_cost", totals.TotalCost.StringFixed(2)).
		Msg("seeded demo cart")
}
