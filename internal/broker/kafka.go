package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"dispatch/internal/config"
	"dispatch/internal/event"
	"dispatch/internal/logger"
	"dispatch/internal/processor"
	"dispatch/pkg/metrics"
)

// KafkaSource reads JSON event envelopes from a topic and feeds them to the
// processor. The engine already owns retry and failure isolation per
// handler, so a processed message is committed regardless of handler
// outcomes; only engine-level failures (malformed event, misconfigured
// filter) are logged before the message is committed and skipped.
type KafkaSource struct {
	cfg       config.KafkaConfig
	reader    *kafka.Reader
	processor *processor.Processor
	log       logger.Logger
}

func NewKafkaSource(cfg config.KafkaConfig, proc *processor.Processor, log logger.Logger) *KafkaSource {
	if log == nil {
		log = logger.NopLogger()
	}
	return &KafkaSource{
		cfg:       cfg,
		processor: proc,
		log:       log,
	}
}

// Run consumes until ctx is cancelled.
func (s *KafkaSource) Run(ctx context.Context) error {
	s.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  s.cfg.Brokers,
		GroupID:  s.cfg.GroupID,
		Topic:    s.cfg.Topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer s.reader.Close()

	s.log.Infow("started consuming events",
		"topic", s.cfg.Topic,
		"brokers", s.cfg.Brokers,
		"group_id", s.cfg.GroupID,
	)

	for {
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.log.Infow("stopped consuming events", "topic", s.cfg.Topic)
				return ctx.Err()
			}
			s.log.Errorw("error fetching kafka message",
				"error", err,
				"topic", s.cfg.Topic,
			)
			time.Sleep(time.Second)
			continue
		}

		var ev event.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			metrics.IngestMessagesTotal.WithLabelValues(s.cfg.Topic, "decode_error").Inc()
			s.log.Errorw("failed to decode event, skipping",
				"error", err,
				"topic", s.cfg.Topic,
				"offset", m.Offset,
			)
			_ = s.reader.CommitMessages(ctx, m)
			continue
		}

		result, err := s.processor.Process(ctx, ev)
		if err != nil {
			metrics.IngestMessagesTotal.WithLabelValues(s.cfg.Topic, "process_error").Inc()
			s.log.Errorw("engine rejected event",
				"error", err,
				"event_id", ev.ID,
				"kind", ev.Kind,
			)
		} else {
			metrics.IngestMessagesTotal.WithLabelValues(s.cfg.Topic, "processed").Inc()
			s.log.Debugw("event processed",
				"event_id", ev.ID,
				"kind", ev.Kind,
				"filtered_out", result.FilteredOut,
				"dispatched", len(result.DispatchedTo),
				"failed", len(result.Failed),
			)
		}

		if err := s.reader.CommitMessages(ctx, m); err != nil {
			s.log.Errorw("failed to commit message",
				"error", err,
				"topic", s.cfg.Topic,
			)
		}
	}
}
