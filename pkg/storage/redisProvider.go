package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	t "github.com/darkweak/offline-gateway/configurationtypes"
	"github.com/darkweak/offline-gateway/pkg/storage/types"
	redis "github.com/go-redis/redis/v9"
	"go.uber.org/zap"
)

const (
	redisPrefix        = "offline-gateway:"
	redisPartitionsKey = redisPrefix + "partitions"
)

// Redis provider type
type Redis struct {
	*redis.Client
	ctx    context.Context
	logger *zap.Logger
}

var (
	_ types.Storer = (*Redis)(nil)

	redisGlobEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)
)

// RedisConnectionFactory function create new Redis instance
func RedisConnectionFactory(c t.AbstractConfigurationInterface) (types.Storer, error) {
	rc := c.GetStorage().Redis
	options := redis.Options{
		Addr:        rc.URL,
		DB:          0,
		DialTimeout: time.Second,
	}
	if rc.Configuration != nil {
		var parsed redis.Options
		if b, e := json.Marshal(rc.Configuration); e == nil {
			if e = json.Unmarshal(b, &parsed); e != nil {
				c.GetLogger().Sugar().Infof("Cannot parse your redis configuration: %+v", e)
			}
		}
		if parsed.Addr != "" {
			options.Addr = parsed.Addr
		}
		options.Username = parsed.Username
		options.Password = parsed.Password
		options.DB = parsed.DB
	}

	return &Redis{
		Client: redis.NewClient(&options),
		ctx:    context.Background(),
		logger: c.GetLogger(),
	}, nil
}

// Name returns the storer name
func (provider *Redis) Name() string {
	return "REDIS"
}

func redisPartitionPrefix(partition string) string {
	return redisPrefix + partition + ":"
}

func (provider *Redis) scan(match string) []string {
	keys := []string{}
	var cursor uint64
	for {
		batch, next, err := provider.Client.Scan(provider.ctx, cursor, match, 100).Result()
		if err != nil {
			provider.logger.Sugar().Errorf("Impossible to scan the Redis keys, %v", err)
			return keys
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys
		}
		cursor = next
	}
}

// ListPartitions method returns the registered partitions
func (provider *Redis) ListPartitions() []string {
	partitions, err := provider.Client.SMembers(provider.ctx, redisPartitionsKey).Result()
	if err != nil {
		return []string{}
	}

	return uniqueSorted(partitions)
}

// CreatePartition method registers the partition
func (provider *Redis) CreatePartition(name string) error {
	return provider.Client.SAdd(provider.ctx, redisPartitionsKey, name).Err()
}

// DeletePartition method drops the partition and every entry it holds
func (provider *Redis) DeletePartition(name string) error {
	keys := provider.scan(redisGlobEscaper.Replace(redisPartitionPrefix(name)) + "*")
	if len(keys) > 0 {
		if err := provider.Client.Del(provider.ctx, keys...).Err(); err != nil {
			provider.logger.Sugar().Errorf("Impossible to drop the partition %s from Redis, %v", name, err)
			return err
		}
	}

	return provider.Client.SRem(provider.ctx, redisPartitionsKey, name).Err()
}

// ListKeys method returns the list of existing keys in the partition
func (provider *Redis) ListKeys(partition string) []string {
	prefix := redisPartitionPrefix(partition)
	keys := []string{}
	for _, k := range provider.scan(redisGlobEscaper.Replace(prefix) + "*") {
		keys = append(keys, strings.TrimPrefix(k, prefix))
	}

	return keys
}

// Get method returns the stored value if exists, nil otherwise
func (provider *Redis) Get(partition, key string) []byte {
	val, err := provider.Client.Get(provider.ctx, redisPartitionPrefix(partition)+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			provider.logger.Sugar().Errorf("Impossible to get the key %s from Redis, %v", key, err)
		}
		return nil
	}

	return val
}

// Set method will store the value in the partition
func (provider *Redis) Set(partition, key string, value []byte) error {
	exists, err := provider.Client.SIsMember(provider.ctx, redisPartitionsKey, partition).Result()
	if err != nil {
		return err
	}
	if !exists {
		return &PartitionNotFoundError{Partition: partition}
	}

	if err = provider.Client.Set(provider.ctx, redisPartitionPrefix(partition)+key, value, 0).Err(); err != nil {
		provider.logger.Sugar().Errorf("Impossible to set value into Redis, %v", err)
	}

	return err
}

// Delete method will delete the entry of the partition if exists
func (provider *Redis) Delete(partition, key string) error {
	return provider.Client.Del(provider.ctx, redisPartitionPrefix(partition)+key).Err()
}

// Init method will check the connection
func (provider *Redis) Init() error {
	return provider.Client.Ping(provider.ctx).Err()
}

// Reset method will reset or close provider
func (provider *Redis) Reset() error {
	for _, partition := range provider.ListPartitions() {
		if err := provider.DeletePartition(partition); err != nil {
			return err
		}
	}

	return nil
}
