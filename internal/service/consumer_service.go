package service

import (
	"context"
	"encoding/json"

	"annotator-be/internal/dto"
	"annotator-be/internal/pkg/logger"
	"annotator-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber     message.Subscriber
	topicName      string
	countService   IAnnotationCountService
	eventPublisher EventPublisher
	logger         logger.ILogger
}

// NewConsumerService handles annotations.submitted: it drops the cached
// count for the annotator and forwards the event to NATS when connected.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	countService IAnnotationCountService,
	eventPublisher EventPublisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber:     subscriber,
		topicName:      topicName,
		countService:   countService,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
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
	var payload dto.AnnotationsSubmittedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("CONSUMER", "Failed to unmarshal message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // invalid messages are never retried
		return
	}

	cs.countService.Invalidate(ctx, payload.Email)

	if cs.eventPublisher != nil {
		event := events.New(events.TypeAnnotationsSubmitted, map[string]interface{}{
			"submission_id": payload.SubmissionId,
			"email":         payload.Email,
			"session_id":    payload.SessionId,
			"subjects":      payload.Subjects,
			"concepts":      payload.Concepts,
		})
		if err := cs.eventPublisher.Publish(ctx, event); err != nil {
			cs.logger.Warn("CONSUMER", "Failed to forward event to NATS", map[string]interface{}{"error": err.Error()})
		}
	}

	cs.logger.Info("CONSUMER", "Annotation submission processed", map[string]interface{}{
		"submission_id": payload.SubmissionId,
		"count":         len(payload.Subjects),
	})
	msg.Ack()
}
