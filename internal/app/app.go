// Package app wires repositories, transport, queue and services from Config.
package app

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/civic-notify/internal/cache"
	"github.com/unclebandit/civic-notify/internal/config"
	"github.com/unclebandit/civic-notify/internal/controller"
	"github.com/unclebandit/civic-notify/internal/db"
	"github.com/unclebandit/civic-notify/internal/handler"
	"github.com/unclebandit/civic-notify/internal/queue"
	"github.com/unclebandit/civic-notify/internal/repository"
	"github.com/unclebandit/civic-notify/internal/service"
	"github.com/unclebandit/civic-notify/internal/transport"
)

// App holds the long-lived dependencies shared by the server and worker.
type App struct {
	Config     *config.Config
	DB         *sql.DB
	Queue      queue.Queue
	Campaigns  *service.CampaignService
	Dispatcher *service.Dispatcher

	// InProcess is true when jobs are delivered by the in-memory queue and
	// must be consumed inside this process.
	InProcess bool

	closers []func() error
}

// New opens the database and broker connections described by cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	conn, err := db.Open(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: conn}
	a.closers = append(a.closers, conn.Close)

	var settings repository.SettingsRepositoryInterface = &repository.SettingsRepository{DB: conn}
	if cfg.RedisAddr != "" {
		settingsCache := cache.NewSettingsCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), settings, cfg.SettingsCacheTTL)
		a.closers = append(a.closers, settingsCache.Close)
		settings = settingsCache
		log.Println("✅ Portal settings cached in redis at", cfg.RedisAddr)
	}

	var sender transport.Sender = transport.LogSender{}
	if cfg.SMTP.Host != "" {
		smtpSender, err := transport.NewSMTPSender(cfg.SMTP, cfg.Delivery.TransportTimeout)
		if err != nil {
			a.Close()
			return nil, err
		}
		sender = smtpSender
	} else {
		log.Println("⚠️ SMTP_HOST not set, messages will only be logged")
	}

	if cfg.AMQPURL != "" {
		amqpQueue, err := queue.DialAMQP(cfg.AMQPURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Queue = amqpQueue
		a.closers = append(a.closers, amqpQueue.Close)
	} else {
		a.Queue = queue.NewInMemoryQueue()
		a.InProcess = true
	}

	recipients := &repository.RecipientRepository{DB: conn}
	preferences := &repository.PreferenceRepository{DB: conn}
	logs := &repository.DeliveryLogRepository{DB: conn}

	a.Dispatcher = &service.Dispatcher{
		Renderer: &service.TemplateRenderer{
			Templates:       &repository.TemplateRepository{DB: conn},
			Settings:        settings,
			DefaultLanguage: cfg.Delivery.DefaultLanguage,
		},
		Gate:       &service.PreferenceGate{Preferences: preferences},
		Recipients: recipients,
		Logs:       logs,
		Sender:     sender,
		From:       cfg.SMTP.From,
		Timeout:    cfg.Delivery.TransportTimeout,
	}

	a.Campaigns = &service.CampaignService{
		CampaignRepo:  &repository.CampaignRepository{DB: conn},
		RecipientRepo: &repository.CampaignRecipientRepository{DB: conn},
		LogRepo:       logs,
		Audience:      &service.AudienceResolver{Recipients: recipients, Preferences: preferences},
		Dispatcher:    a.Dispatcher,
		Queue:         a.Queue,
		Topic:         cfg.CampaignQueue,
		BatchSize:     cfg.Delivery.BatchSize,
		BatchDelay:    cfg.Delivery.BatchDelay,
		Workers:       cfg.Delivery.BatchWorkers,
		LeaseTTL:      cfg.Delivery.RunLeaseTTL,
	}
	return a, nil
}

// Subscribe attaches a campaign worker to the job queue.
func (a *App) Subscribe(ctx context.Context) error {
	worker := service.NewWorker(ctx, a.Campaigns)
	return a.Queue.Subscribe(a.Config.CampaignQueue, worker.Handle)
}

// Router builds the HTTP routes.
func (a *App) Router() http.Handler {
	campaignController := &controller.CampaignController{CampaignService: a.Campaigns}
	notificationController := &controller.NotificationController{Dispatcher: a.Dispatcher}
	campaignHandler := handler.NewCampaignHandler(a.Campaigns)

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Post("/campaigns/actions", campaignController.Actions)
	r.Get("/campaigns/{id}", campaignHandler.GetCampaignHandlerWithStats)
	r.Get("/campaigns/{id}/log", campaignHandler.GetDeliveryLogHandler)

	// Transactional sends
	r.Post("/notifications/send", notificationController.Send)

	return r
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Println("⚠️ close:", err)
		}
	}
}
