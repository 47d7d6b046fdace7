package events

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

type KafkaConsumer struct {
	consumerGroup sarama.ConsumerGroup
	logger        *logrus.Logger
	topics        []string
}

type consumerGroupHandler struct {
	handler OrderPlacedHandler
	logger  *logrus.Logger
}

func NewKafkaConsumer(brokers []string, groupID, topic string, logger *logrus.Logger) (*KafkaConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Version = sarama.V2_6_0_0

	consumerGroup, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &KafkaConsumer{
		consumerGroup: consumerGroup,
		logger:        logger,
		topics:        []string{topic},
	}, nil
}

// Start joins the consumer group and blocks until ctx is cancelled.
func (c *KafkaConsumer) Start(ctx context.Context, handler OrderPlacedHandler) error {
	groupHandler := &consumerGroupHandler{
		handler: handler,
		logger:  c.logger,
	}

	for {
		if err := c.consumerGroup.Consume(ctx, c.topics, groupHandler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.WithError(err).Error("Error consuming from Kafka")
			return err
		}

		if ctx.Err() != nil {
			c.logger.Info("Kafka consumer context cancelled")
			return nil
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.consumerGroup.Close()
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka consumer group session setup")
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka consumer group session cleanup")
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			h.logger.WithFields(logrus.Fields{
				"topic":     message.Topic,
				"partition": message.Partition,
				"offset":    message.Offset,
				"key":       string(message.Key),
			}).Debug("Received Kafka message")

			if err := h.handleMessage(session.Context(), message.Value); err != nil {
				h.logger.WithError(err).Error("Failed to handle message")
			}
			// a malformed or unhandled event is not redelivered
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *consumerGroupHandler) handleMessage(ctx context.Context, value []byte) error {
	event, err := decodeOrderPlaced(value)
	if err != nil {
		return err
	}

	h.logger.WithField("order_id", event.OrderID).Info("Processing order placed event")
	return h.handler.HandleOrderPlaced(ctx, event)
}

func decodeOrderPlaced(value []byte) (OrderPlacedEvent, error) {
	var event OrderPlacedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return OrderPlacedEvent{}, err
	}
	if event.OrderID == "" {
		return OrderPlacedEvent{}, errors.New("order placed event without order_id")
	}
	return event, nil
}

var _ Subscriber = (*KafkaConsumer)(nil)
