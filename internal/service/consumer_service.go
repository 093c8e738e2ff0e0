package service

import (
	"context"
	"encoding/json"
	"errors"

	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the ingest topic and runs the document
// pipeline for each message.
type consumerService struct {
	pubSub           *gochannel.GoChannel
	topicName        string
	ingestionService IIngestionService
	logger           logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	ingestionService IIngestionService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:           pubSub,
		topicName:        topicName,
		ingestionService: ingestionService,
		logger:           log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishIngestDocumentMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("Consumer", "Failed to unmarshal message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	cs.logger.Info("Consumer", "Processing document", map[string]interface{}{"document_id": payload.DocumentId})

	if err := cs.ingestionService.Process(ctx, payload.DocumentId); err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			cs.logger.Warn("Consumer", "Document gone, dropping message", map[string]interface{}{"document_id": payload.DocumentId})
			msg.Ack() // Document deleted? Ack.
			return
		}
		cs.logger.Error("Consumer", "Pipeline failed", map[string]interface{}{"document_id": payload.DocumentId, "error": err.Error()})
		// The document is already marked failed; retrying the same bytes
		// would fail again, so ack and rely on manual reprocess.
		msg.Ack()
		return
	}

	msg.Ack()
}
