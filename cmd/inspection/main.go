package main // inspection service entry point

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/roadworthy/inspection-platform/internal/config"
	"github.com/roadworthy/inspection-platform/internal/consumer"
	"github.com/roadworthy/inspection-platform/internal/database"
	"github.com/roadworthy/inspection-platform/internal/event"
	"github.com/roadworthy/inspection-platform/internal/handler"
	"github.com/roadworthy/inspection-platform/internal/obs"
	"github.com/roadworthy/inspection-platform/internal/repository"
	"github.com/roadworthy/inspection-platform/internal/resilience"
	"github.com/roadworthy/inspection-platform/internal/router"
	"github.com/roadworthy/inspection-platform/internal/service"
)

const serviceName = "inspection-service"

func main() {
	_ = godotenv.Load()
	cfg := config.Load(serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer := obs.InitTracer(serviceName, cfg.Env)
	defer func() { _ = shutdownTracer(context.Background()) }()

	db, err := database.Open(database.Params{
		User: cfg.DBUser, Pass: cfg.DBPass,
		Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("schema: %v", err)
	}

	rlCfg := config.LoadRateLimitConfig()
	var limiter *resilience.Limiter
	if rdb := config.NewRedisClient(); rdb != nil {
		limiter = resilience.NewLimiter(resilience.NewRedisCounterStore(rdb), rlCfg.Prefix)
	} else {
		log.Println("redis unavailable, rate limiting disabled")
	}

	inspections := repository.NewInspectionRepo(db)
	appointments := repository.NewAppointmentRepo(db)
	payments := repository.NewPaymentRepo(db)
	certificates := repository.NewCertificateRepo(db)
	invoices := repository.NewInvoiceRepo(db)
	outbox := repository.NewOutboxRepo(db)
	processed := repository.NewProcessedEventRepo(db)

	inspectionSvc := service.NewInspectionService(inspections, appointments, outbox, processed, serviceName)
	certificateSvc := service.NewCertificateService(
		certificates, invoices, inspections, appointments, payments,
		outbox, processed, cfg.CertSecret, serviceName)

	publisher, err := event.NewPublisher(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		log.Fatalf("publisher: %v", err)
	}
	defer publisher.Close()
	go service.NewOutboxRelay(outbox, publisher).Run(ctx)

	// payment.completed creates inspections; the self-subscription to
	// inspection.completed drives certificate and invoice generation.
	listener := consumer.NewInspectionListener(inspectionSvc, certificateSvc)
	go func() {
		if err := event.NewConsumer(serviceName, cfg.AMQPURL, cfg.Exchange, listener.Keys()).
			Run(ctx, listener.Handle); err != nil && ctx.Err() == nil {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Base(e, rlCfg, limiter)
	router.RegisterInspection(e,
		handler.NewInspectionHandler(inspectionSvc),
		handler.NewCertificateHandler(certificateSvc),
		rlCfg, limiter, cfg.JWTSecret)

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = e.Shutdown(shutCtx)
	}()

	addr := ":" + cfg.InspectionPort
	log.Printf("%s listening on %s (env=%s)", serviceName, addr, cfg.Env)
	if err := e.Start(addr); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}
