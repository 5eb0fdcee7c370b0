package storage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	t "github.com/darkweak/offline-gateway/configurationtypes"
	"github.com/darkweak/offline-gateway/pkg/storage/types"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const (
	etcdPartitionsPrefix = "/offline-gateway/partitions/"
	etcdEntriesPrefix    = "/offline-gateway/entries/"
)

// Etcd provider type
type Etcd struct {
	*clientv3.Client
	ctx     context.Context
	timeout time.Duration
	logger  *zap.Logger
}

var _ types.Storer = (*Etcd)(nil)

// EtcdConnectionFactory function create new Etcd instance
func EtcdConnectionFactory(c t.AbstractConfigurationInterface) (types.Storer, error) {
	bc, _ := json.Marshal(c.GetStorage().Etcd.Configuration)
	etcdConfiguration := clientv3.Config{
		DialTimeout:      5 * time.Second,
		AutoSyncInterval: 1 * time.Second,
		Logger:           c.GetLogger(),
	}
	_ = json.Unmarshal(bc, &etcdConfiguration)

	if etcdConfiguration.DialTimeout == 0 {
		etcdConfiguration.DialTimeout = 5 * time.Second
	}

	cli, err := clientv3.New(etcdConfiguration)
	if err != nil {
		c.GetLogger().Sugar().Error("Impossible to initialize the Etcd DB.", err)
		return nil, err
	}

	return &Etcd{
		Client:  cli,
		ctx:     context.Background(),
		timeout: etcdConfiguration.DialTimeout,
		logger:  c.GetLogger(),
	}, nil
}

// Name returns the storer name
func (provider *Etcd) Name() string {
	return "ETCD"
}

func etcdEntryPrefix(partition string) string {
	return etcdEntriesPrefix + partition + "/"
}

func (provider *Etcd) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(provider.ctx, provider.timeout)
}

func (provider *Etcd) keysWithPrefix(prefix string) []string {
	ctx, cancel := provider.context()
	defer cancel()

	r, e := provider.Client.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if e != nil {
		provider.logger.Sugar().Errorf("Impossible to list the Etcd keys, %v", e)
		return []string{}
	}

	keys := []string{}
	for _, k := range r.Kvs {
		keys = append(keys, strings.TrimPrefix(string(k.Key), prefix))
	}

	return keys
}

// ListPartitions method returns the registered partitions
func (provider *Etcd) ListPartitions() []string {
	return uniqueSorted(provider.keysWithPrefix(etcdPartitionsPrefix))
}

// CreatePartition method registers the partition
func (provider *Etcd) CreatePartition(name string) error {
	ctx, cancel := provider.context()
	defer cancel()

	_, err := provider.Client.Put(ctx, etcdPartitionsPrefix+name, "")
	return err
}

// DeletePartition method drops the partition and every entry it holds
func (provider *Etcd) DeletePartition(name string) error {
	ctx, cancel := provider.context()
	defer cancel()

	if _, err := provider.Client.Delete(ctx, etcdEntryPrefix(name), clientv3.WithPrefix()); err != nil {
		provider.logger.Sugar().Errorf("Impossible to drop the partition %s from Etcd, %v", name, err)
		return err
	}

	_, err := provider.Client.Delete(ctx, etcdPartitionsPrefix+name)
	return err
}

// ListKeys method returns the list of existing keys in the partition
func (provider *Etcd) ListKeys(partition string) []string {
	return provider.keysWithPrefix(etcdEntryPrefix(partition))
}

// Get method returns the stored value if exists, nil otherwise
func (provider *Etcd) Get(partition, key string) []byte {
	ctx, cancel := provider.context()
	defer cancel()

	r, e := provider.Client.Get(ctx, etcdEntryPrefix(partition)+key)
	if e != nil || len(r.Kvs) == 0 {
		return nil
	}

	return r.Kvs[0].Value
}

// Set method will store the value in the partition
func (provider *Etcd) Set(partition, key string, value []byte) error {
	ctx, cancel := provider.context()
	defer cancel()

	r, err := provider.Client.Get(ctx, etcdPartitionsPrefix+partition, clientv3.WithKeysOnly())
	if err != nil {
		return err
	}
	if len(r.Kvs) == 0 {
		return &PartitionNotFoundError{Partition: partition}
	}

	if _, err = provider.Client.Put(ctx, etcdEntryPrefix(partition)+key, string(value)); err != nil {
		provider.logger.Sugar().Errorf("Impossible to set value into Etcd, %v", err)
	}

	return err
}

// Delete method will delete the entry of the partition if exists
func (provider *Etcd) Delete(partition, key string) error {
	ctx, cancel := provider.context()
	defer cancel()

	_, err := provider.Client.Delete(ctx, etcdEntryPrefix(partition)+key)
	return err
}

// Init method will check the cluster is reachable
func (provider *Etcd) Init() error {
	ctx, cancel := provider.context()
	defer cancel()

	_, err := provider.Client.Get(ctx, etcdPartitionsPrefix, clientv3.WithPrefix(), clientv3.WithCountOnly())
	return err
}

// Reset method will reset or close provider
func (provider *Etcd) Reset() error {
	ctx, cancel := provider.context()
	defer cancel()

	_, err := provider.Client.Delete(ctx, "/offline-gateway/", clientv3.WithPrefix())
	return err
}
