package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"payment-agent/config"
	"payment-agent/domain"
	httpLayer "payment-agent/http"
	"payment-agent/logging"
	"payment-agent/money"
	"payment-agent/repository"
	"payment-agent/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Logger.Fatalf("Error loading configuration: %v", err)
	}

	log := logging.Configure(cfg.Log.Level, cfg.Log.Format)

	openingBalance, err := money.NewFromString(cfg.Session.OpeningBalance)
	if err != nil {
		log.Fatalf("Invalid opening balance %q: %v", cfg.Session.OpeningBalance, err)
	}

	billRepo, err := buildBillRepository(cfg)
	if err != nil {
		log.Fatalf("Error loading bills: %v", err)
	}

	var cache repository.CacheRepository
	if cfg.Redis.Enabled {
		cache = repository.NewRedisCache(cfg.Redis.Addr)
		log.Infof("Session snapshots cached in Redis at %s", cfg.Redis.Addr)
	} else {
		cache = repository.NewMockCache()
	}

	sessions := service.NewSessionManager(cfg.Session.CompanyID, cfg.Session.UserName, openingBalance)
	planner := service.NewPlannerService()
	chatbot := service.NewChatbotService(sessions, billRepo, planner, cache, log)
	intents := service.NewIntentService(cfg.AI.APIKey, cfg.AI.Model, log)
	renderer := service.NewRendererService(cfg.AI.APIKey, cfg.AI.Model, log)

	if cfg.AI.APIKey == "" {
		log.Warn("No OpenAI API key configured, using keyword classification and template replies")
	}

	chatHandler := httpLayer.NewChatHandler(chatbot, intents, renderer, cfg.Session.UserName, log)
	planHandler := httpLayer.NewPlanHandler(planner)

	rateLimiter := httpLayer.NewRateLimiter(cfg.HTTP.RateCapacity, time.Duration(cfg.HTTP.RateWindowS)*time.Second)
	defer rateLimiter.Stop()

	mux := http.NewServeMux()
	mux.Handle(
		"/chat/message",
		httpLayer.RateLimitMiddleware(
			rateLimiter,
			http.HandlerFunc(chatHandler.HandleMessage),
		),
	)

	mux.Handle(
		"/chat/history",
		httpLayer.RateLimitMiddleware(
			rateLimiter,
			http.HandlerFunc(chatHandler.HandleHistory),
		),
	)

	mux.Handle(
		"/plan/compute",
		httpLayer.RateLimitMiddleware(
			rateLimiter,
			http.HandlerFunc(planHandler.ComputePlan),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("🚀 API corriendo en http://localhost:%s", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorf("Error starting server: %v", err)
		return
	case <-quit:
		log.Info("Shutting down server...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Error during server shutdown: %v", err)
	}

	log.Info("Server exited")
}

// buildBillRepository loads the bill source configured in bills.data_file, or
// seeds a small demo portfolio around the current date when none is set.
func buildBillRepository(cfg *config.Config) (repository.BillRepository, error) {
	if cfg.Bills.DataFile != "" {
		return repository.NewBillRepositoryFromJSON(cfg.Bills.DataFile)
	}
	return repository.NewBillRepositoryMemory(demoBills(cfg.Session.CompanyID)), nil
}

func demoBills(companyID string) []domain.Bill {
	today := time.Now()
	day := func(offset int) time.Time {
		t := today.AddDate(0, 0, offset)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
	mk := func(id, creditor string, amount float64, rate float64, due time.Time) domain.Bill {
		return domain.Bill{
			ID:                id,
			CompanyID:         companyID,
			Creditor:          creditor,
			Amount:            money.FromFloat(amount),
			DailyInterestRate: decimal.NewFromFloat(rate),
			DueDate:           due,
		}
	}

	return []domain.Bill{
		mk("BOLETO_001", "Energia Elétrica SA", 1850.00, 0.01, day(0)),
		mk("BOLETO_002", "Fornecedor de Insumos ME", 4200.50, 0.02, day(0)),
		mk("BOLETO_003", "Telecom Brasil", 389.90, 0.005, day(-5)),
		mk("BOLETO_004", "Aluguel Comercial Ltda", 6500.00, 0.015, day(3)),
		mk("BOLETO_005", "Transportadora Rápida", 980.25, 0.01, day(7)),
		mk("BOLETO_006", "Distribuidora Atacadista", 3120.00, 0.02, day(7)),
		mk("BOLETO_007", "Seguro Empresarial", 745.60, 0.005, day(12)),
		mk("BOLETO_008", "Marketing Digital SA", 1500.00, 0.01, day(15)),
	}
}
