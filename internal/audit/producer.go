package audit

import (
	"context"
	"errors"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/circuitbreak"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/logging"
	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var ErrMissingTopic = errors.New("audit topic is required")

type Settings struct {
	BootstrapServer string
	Username        string
	Password        string
	Topic           string
	Breaker         circuitbreak.Settings
	Signal          *circuitbreak.Signal
}

type ProducerResult struct {
	Partition int32
	Offset    int64
}

// Producer publishes audit events to Kafka.
type Producer struct {
	Client         sarama.SyncProducer
	CircuitBreaker *gobreaker.CircuitBreaker[ProducerResult]

	topic string
}

func NewSaramaConfig(settings Settings) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_6_0_0

	cfg.Net.SASL.Enable = true
	cfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
	cfg.Net.SASL.User = settings.Username
	cfg.Net.SASL.Password = settings.Password
	cfg.Net.SASL.Handshake = true
	cfg.Net.SASL.SCRAMClientGeneratorFunc = newSCRAMSHA512Client

	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = false

	return cfg
}

func NewProducer(settings Settings) (*Producer, error) {
	if settings.Topic == "" {
		return nil, ErrMissingTopic
	}

	client, err := sarama.NewSyncProducer([]string{settings.BootstrapServer}, NewSaramaConfig(settings))
	if err != nil {
		logging.Logger.Error("Failed to create Kafka producer",
			zap.String("bootstrap", settings.BootstrapServer),
			zap.Error(err),
		)

		return nil, err
	}

	logging.Logger.Info("Successfully connected to Kafka producer",
		zap.String("bootstrap", settings.BootstrapServer),
		zap.String("mechanism", "SCRAM-SHA-512"),
	)

	return NewProducerWithClient(client, settings)
}

// NewProducerWithClient wraps an existing sarama producer.
func NewProducerWithClient(client sarama.SyncProducer, settings Settings) (*Producer, error) {
	if settings.Topic == "" {
		return nil, ErrMissingTopic
	}

	return &Producer{
		Client: client,
		CircuitBreaker: gobreaker.NewCircuitBreaker[ProducerResult](
			circuitbreak.NewSettings(circuitbreak.KafkaProducerService, settings.Breaker, settings.Signal),
		),
		topic: settings.Topic,
	}, nil
}

// Publish sends event keyed by voicemail id so one record's history stays on
// one partition.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.CircuitBreaker.Execute(func() (ProducerResult, error) {
		return p.doSendMessage([]byte(event.VoicemailID), value)
	})

	return err
}

func (p *Producer) Close() error {
	err := p.Client.Close()
	if err != nil {
		logging.Logger.Error("Failed to close Kafka producer", zap.Error(err))
		return err
	}

	logging.Logger.Info("Kafka producer closed successfully")

	return nil
}

func (p *Producer) doSendMessage(key, value []byte) (ProducerResult, error) {
	message := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	}

	partition, offset, err := p.Client.SendMessage(message)
	if err != nil {
		logging.Logger.Error("Failed to send audit event",
			zap.String("topic", p.topic),
			zap.Error(err),
		)

		return ProducerResult{}, err
	}

	logging.Logger.Debug("Audit event sent",
		zap.String("topic", p.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)

	return ProducerResult{Partition: partition, Offset: offset}, nil
}
