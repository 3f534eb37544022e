package indexsync

import (
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
)

// ConsumerHandler batches the messages of each claim into bulk requests.
// Offsets are only marked once the batch has been sent, so a failed batch is
// consumed again after a rebalance.
type ConsumerHandler struct {
	indexer       *Indexer
	batchSize     int
	flushInterval time.Duration
	ready         chan bool
	indexed       atomic.Int64
}

var _ sarama.ConsumerGroupHandler = &ConsumerHandler{}

type ConsumerOption func(*ConsumerHandler)

func WithBatchSize(size int) ConsumerOption {
	return func(h *ConsumerHandler) {
		h.batchSize = size
	}
}

func WithFlushInterval(interval time.Duration) ConsumerOption {
	return func(h *ConsumerHandler) {
		h.flushInterval = interval
	}
}

func NewConsumerHandler(indexer *Indexer, options ...ConsumerOption) *ConsumerHandler {
	ret := &ConsumerHandler{
		indexer:       indexer,
		batchSize:     500,
		flushInterval: time.Second,
		ready:         make(chan bool),
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// Ready is closed once the first session has been set up.
func (h *ConsumerHandler) Ready() <-chan bool {
	return h.ready
}

// Indexed returns how many documents were indexed or deleted so far.
func (h *ConsumerHandler) Indexed() int64 {
	return h.indexed.Load()
}

func (h *ConsumerHandler) Setup(session sarama.ConsumerGroupSession) error {
	select {
	case <-h.ready:
	default:
		close(h.ready)
	}
	log.Info().Str("member_id", session.MemberID()).Msg("sync consumer ready")
	return nil
}

func (h *ConsumerHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	log.Info().Str("member_id", session.MemberID()).Msg("sync consumer session ended")
	return nil
}

func (h *ConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	logger := log.With().Str("topic", claim.Topic()).Int32("partition", claim.Partition()).Logger()
	logger.Info().Int64("initial_offset", claim.InitialOffset()).Msg("consuming partition")

	ticker := time.NewTicker(h.flushInterval)
	defer ticker.Stop()

	var pending []*sarama.ConsumerMessage
	var batch []*Message

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		res, err := h.indexer.Handle(session.Context(), batch)
		if err != nil {
			return err
		}
		h.indexed.Add(int64(res.Indexed + res.Deleted))
		for _, m := range pending {
			session.MarkMessage(m, "")
		}
		pending, batch = pending[:0], batch[:0]
		return nil
	}

	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return flush()
			}
			pending = append(pending, message)
			msg, err := DecodeMessage(message.Value)
			if err != nil {
				logger.Error().Err(err).Int64("offset", message.Offset).Msg("skipping invalid sync message")
				h.indexer.metrics.Documents.WithLabelValues("unknown", "invalid").Inc()
			} else {
				batch = append(batch, msg)
			}
			if len(pending) >= h.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		case <-session.Context().Done():
			return nil
		}
	}
}
