package services

import (
	"github.com/nolashq/nolas/config"
	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/repository"
	"github.com/nolashq/nolas/services/connect"
	"github.com/nolashq/nolas/services/events"
	"github.com/nolashq/nolas/services/imap"
	"github.com/nolashq/nolas/services/listener"
	"github.com/nolashq/nolas/services/messages"
	"github.com/nolashq/nolas/services/smtp"
	"github.com/nolashq/nolas/services/storage"
	"github.com/nolashq/nolas/services/translator"
	"github.com/nolashq/nolas/services/webhook"
)

type Services struct {
	ConnectionManager *imap.ConnectionManager
	FolderService     interfaces.FolderService
	Translator        interfaces.Translator
	WebhookDispatcher interfaces.WebhookDispatcher
	MessageReader     interfaces.MessageReader
	EmailSender       interfaces.EmailSender
	ConnectService    interfaces.ConnectService
	ListenerService   *listener.Service

	// Optional integrations; nil when not configured.
	EventsPublisher interfaces.EventsPublisher
	ArchiveService  interfaces.StorageService
}

func InitServices(cfg *config.Config, repos *repository.Repositories, log logger.Logger) (*Services, error) {
	encryptionKey := cfg.AppConfig.PasswordEncryptionKey

	connectionManager := imap.NewConnectionManager(cfg.IMAP, cfg.Worker, encryptionKey, log)
	folderService := imap.NewFolderService(connectionManager, log)
	messageTranslator := translator.NewTranslator(log)
	dispatcher := webhook.NewDispatcher(cfg.Webhook, repos.WebhookLogRepository, log)

	var archiveService interfaces.StorageService
	if cfg.Storage.Enabled() {
		archiveService = storage.NewArchiveService(cfg.Storage)
	}

	reader := messages.NewMessageService(connectionManager, folderService, messageTranslator, repos.EmailRepository, archiveService, log)
	sender := smtp.NewSender(connectionManager, reader, repos.EmailRepository, encryptionKey, log)
	connectService := connect.NewConnectService(
		repos.AccountRepository,
		repos.AuthorizationRequestRepository,
		repos.UidTrackingRepository,
		connectionManager,
		sender,
		encryptionKey,
		log,
	)

	var eventsPublisher interfaces.EventsPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		publisher, err := events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log, nil)
		if err != nil {
			return nil, err
		}
		eventsPublisher = publisher
	}

	listenerService := listener.NewService(
		cfg,
		repos.AccountRepository,
		repos.AppRepository,
		folderService,
		listener.SupervisorDeps{
			Connections: connectionManager,
			Translator:  messageTranslator,
			Dispatcher:  dispatcher,
			Emails:      repos.EmailRepository,
			UidTracking: repos.UidTrackingRepository,
			Health:      repos.ConnectionHealthRepository,
			Events:      eventsPublisher,
			Archive:     archiveService,
			Log:         log,
		},
		log,
	)

	return &Services{
		ConnectionManager: connectionManager,
		FolderService:     folderService,
		Translator:        messageTranslator,
		WebhookDispatcher: dispatcher,
		MessageReader:     reader,
		EmailSender:       sender,
		ConnectService:    connectService,
		ListenerService:   listenerService,
		EventsPublisher:   eventsPublisher,
		ArchiveService:    archiveService,
	}, nil
}
