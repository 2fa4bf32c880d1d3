package bootstrap

import (
	"log"

	"ad-studio-be/internal/config"
	"ad-studio-be/internal/controller"
	"ad-studio-be/internal/pkg/logger"
	"ad-studio-be/internal/pkg/mailer"
	"ad-studio-be/internal/repository/unitofwork"
	"ad-studio-be/internal/service"
	"ad-studio-be/pkg/gateway"
	pktNats "ad-studio-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

const dispatchTopic = "gateway.events"

type Container struct {
	// Controllers
	WebhookController  controller.IWebhookController
	BillingController  controller.IBillingController
	OperatorController controller.IOperatorController

	// Background services (exposed for main.go to run)
	DispatcherService service.IDispatcherService

	NatsPublisher *pktNats.Publisher
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// NATS is optional; audit mirroring degrades to log-only when absent.
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	// 3. Payment gateway
	paymentGateway := gateway.NewStripeGateway(cfg.Billing.StripeSecretKey)

	// 4. Services
	publisherService := service.NewPublisherService(dispatchTopic, pubSub)
	auditService := service.NewAuditService(uowFactory, natsPub, sysLogger)
	catalogService := service.NewCatalogService(&cfg.Billing, uowFactory, sysLogger)
	ledgerService := service.NewLedgerService(uowFactory, auditService, sysLogger)
	subscriptionService := service.NewSubscriptionService(
		cfg,
		uowFactory,
		paymentGateway,
		catalogService,
		ledgerService,
		auditService,
		emailService,
		sysLogger,
	)
	dispatcherService := service.NewDispatcherService(
		&cfg.Billing,
		pubSub,
		dispatchTopic,
		publisherService,
		uowFactory,
		subscriptionService,
		auditService,
		sysLogger,
	)

	// 5. Controllers
	return &Container{
		WebhookController:  controller.NewWebhookController(dispatcherService),
		BillingController:  controller.NewBillingController(ledgerService, subscriptionService, catalogService),
		OperatorController: controller.NewOperatorController(ledgerService, subscriptionService, dispatcherService, auditService),
		DispatcherService:  dispatcherService,
		NatsPublisher:      natsPub,
	}
}
