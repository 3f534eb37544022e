package indexsync

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrRolloverNotImplemented = errors.New("rollover is not implemented")

// Job synchronizes documents into the cluster. Once Run returns having synced
// no more than RolloverThreshold documents, the job is caught up and Rollover
// may switch readers over.
type Job interface {
	Name() string
	RolloverThreshold() int
	Run(ctx context.Context) (int, error)
	Rollover(ctx context.Context) error
}

type KafkaJobSettings struct {
	Brokers           []string      `yaml:"brokers"`
	GroupID           string        `yaml:"group-id"`
	Topics            []string      `yaml:"topics"`
	KafkaVersion      string        `yaml:"kafka-version,omitempty"`
	FromOldest        bool          `yaml:"from-oldest,omitempty"`
	BatchSize         int           `yaml:"batch-size,omitempty"`
	FlushInterval     time.Duration `yaml:"flush-interval,omitempty"`
	RolloverThreshold int           `yaml:"rollover-threshold,omitempty"`
}

func (s *KafkaJobSettings) Validate() error {
	if len(s.Brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	if s.GroupID == "" {
		return errors.New("no consumer group configured")
	}
	if len(s.Topics) == 0 {
		return errors.New("no topics configured")
	}
	for _, t := range s.Topics {
		if t == "" {
			return errors.New("empty topic name")
		}
	}
	return nil
}

func (s *KafkaJobSettings) SaramaConfig() (*sarama.Config, error) {
	ret := sarama.NewConfig()
	if s.KafkaVersion != "" {
		version, err := sarama.ParseKafkaVersion(s.KafkaVersion)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid kafka version %s", s.KafkaVersion)
		}
		ret.Version = version
	}
	ret.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	ret.Consumer.Offsets.Initial = sarama.OffsetNewest
	if s.FromOldest {
		ret.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	ret.Consumer.Return.Errors = true
	return ret, nil
}

type ConsumerGroupFactory func(brokers []string, groupID string, config *sarama.Config) (sarama.ConsumerGroup, error)

type KafkaJob struct {
	name     string
	settings KafkaJobSettings
	indexer  *Indexer
	newGroup ConsumerGroupFactory
	retry    time.Duration
}

var _ Job = &KafkaJob{}

type KafkaJobOption func(*KafkaJob)

func WithConsumerGroupFactory(factory ConsumerGroupFactory) KafkaJobOption {
	return func(j *KafkaJob) {
		j.newGroup = factory
	}
}

func NewKafkaJob(name string, settings KafkaJobSettings, indexer *Indexer, options ...KafkaJobOption) (*KafkaJob, error) {
	if err := settings.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid sync job %s", name)
	}
	ret := &KafkaJob{
		name:     name,
		settings: settings,
		indexer:  indexer,
		newGroup: sarama.NewConsumerGroup,
		retry:    5 * time.Second,
	}
	for _, o := range options {
		o(ret)
	}
	return ret, nil
}

func (j *KafkaJob) Name() string {
	return j.name
}

func (j *KafkaJob) RolloverThreshold() int {
	return j.settings.RolloverThreshold
}

// Run consumes the configured topics until ctx is cancelled and returns the
// number of synced documents.
func (j *KafkaJob) Run(ctx context.Context) (int, error) {
	config, err := j.settings.SaramaConfig()
	if err != nil {
		return 0, err
	}
	group, err := j.newGroup(j.settings.Brokers, j.settings.GroupID, config)
	if err != nil {
		return 0, errors.Wrapf(err, "could not join consumer group %s", j.settings.GroupID)
	}
	logger := log.With().Str("job", j.name).Str("group_id", j.settings.GroupID).Logger()

	// the group closes its error channel on Close
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for err := range group.Errors() {
			j.indexer.Metrics().ConsumerErrors.Inc()
			logger.Warn().Err(err).Msg("consumer group error")
		}
	}()
	defer func() {
		if err := group.Close(); err != nil {
			logger.Warn().Err(err).Msg("could not close consumer group")
		}
		<-drained
	}()

	var options []ConsumerOption
	if j.settings.BatchSize > 0 {
		options = append(options, WithBatchSize(j.settings.BatchSize))
	}
	if j.settings.FlushInterval > 0 {
		options = append(options, WithFlushInterval(j.settings.FlushInterval))
	}
	handler := NewConsumerHandler(j.indexer, options...)

	logger.Info().Strs("topics", j.settings.Topics).Msg("starting sync job")

	for {
		err := group.Consume(ctx, j.settings.Topics, handler)
		if ctx.Err() != nil || errors.Is(err, sarama.ErrClosedConsumerGroup) {
			logger.Info().Int64("synced", handler.Indexed()).Msg("sync job stopped")
			return int(handler.Indexed()), nil
		}
		if err != nil {
			logger.Error().Err(err).Dur("retry_in", j.retry).Msg("consumer group failed")
			select {
			case <-time.After(j.retry):
			case <-ctx.Done():
				return int(handler.Indexed()), nil
			}
		}
	}
}

func (j *KafkaJob) Rollover(ctx context.Context) error {
	return ErrRolloverNotImplemented
}

// RunJob runs job and attempts a rollover when it synced no more documents
// than its threshold.
func RunJob(ctx context.Context, job Job) error {
	synced, err := job.Run(ctx)
	if err != nil {
		return errors.Wrapf(err, "sync job %s failed", job.Name())
	}
	if synced > job.RolloverThreshold() {
		return nil
	}

	err = job.Rollover(context.WithoutCancel(ctx))
	if errors.Is(err, ErrRolloverNotImplemented) {
		log.Warn().Str("job", job.Name()).Int("synced", synced).Msg("job is caught up, but rollover is not implemented")
		return nil
	}
	return err
}

// RunJobs runs the jobs concurrently. The first failing job cancels the
// others.
func RunJobs(ctx context.Context, jobs ...Job) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		eg.Go(func() error {
			return RunJob(ctx, job)
		})
	}
	return eg.Wait()
}
