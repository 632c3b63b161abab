package reportsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/ingest"
)

const keyPrefix = "marktrack:upload_report:"

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ingest.ReportStore = (*redisStore)(nil)

func NewRedisStore(client *redis.Client, ttl time.Duration) ingest.ReportStore {
	return &redisStore{client: client, ttl: ttl}
}

// NewRedisClient connects to the configured redis server and checks that it answers.
func NewRedisClient(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Address,
		Password: conf.Password,
		DB:       conf.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

func (s *redisStore) Save(ctx context.Context, report ingest.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return errors.Wrap(err, "encoding report")
	}
	return errors.Wrap(s.client.Set(ctx, keyPrefix+report.ID, data, s.ttl).Err(), "storing report")
}

func (s *redisStore) Get(ctx context.Context, id string) (ingest.Report, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err == redis.Nil {
		return ingest.Report{}, ingest.ErrReportNotFound
	}
	if err != nil {
		return ingest.Report{}, errors.Wrap(err, "fetching report")
	}

	var report ingest.Report
	if err = json.Unmarshal(data, &report); err != nil {
		return ingest.Report{}, errors.Wrap(err, "decoding report")
	}
	return report, nil
}
