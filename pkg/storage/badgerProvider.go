package storage

import (
	"encoding/json"
	"errors"
	"strings"

	t "github.com/darkweak/offline-gateway/configurationtypes"
	"github.com/darkweak/offline-gateway/pkg/storage/types"
	badger "github.com/dgraph-io/badger/v3"
	"github.com/imdario/mergo"
	"go.uber.org/zap"
)

const (
	badgerPartitionPrefix = "PARTITION_"
	badgerEntryPrefix     = "ENTRY_"
	badgerSeparator       = "|"
)

// Badger provider type
type Badger struct {
	*badger.DB
	logger *zap.Logger
}

var (
	enabledBadgerInstances               = make(map[string]*Badger)
	_                      badger.Logger = (*badgerLogger)(nil)
	_                      types.Storer  = (*Badger)(nil)
)

type badgerLogger struct {
	*zap.SugaredLogger
}

func (b *badgerLogger) Warningf(msg string, params ...interface{}) {
	b.SugaredLogger.Warnf(msg, params...)
}

// BadgerConnectionFactory function create new Badger instance
func BadgerConnectionFactory(c t.AbstractConfigurationInterface) (types.Storer, error) {
	badgerConfiguration := c.GetStorage().Badger
	badgerOptions := badger.DefaultOptions(badgerConfiguration.Path)
	badgerOptions.SyncWrites = true
	if badgerConfiguration.Configuration != nil {
		var parsedBadger badger.Options
		if b, e := json.Marshal(badgerConfiguration.Configuration); e == nil {
			if e = json.Unmarshal(b, &parsedBadger); e != nil {
				c.GetLogger().Sugar().Error("Impossible to parse the configuration for the default provider (Badger)", e)
			}
		}

		if err := mergo.Merge(&badgerOptions, parsedBadger, mergo.WithOverride); err != nil {
			c.GetLogger().Sugar().Error("An error occurred during the badgerOptions merge from the default options with your configuration.")
		}
	}
	if badgerOptions.Dir == "" {
		badgerOptions = badgerOptions.WithInMemory(true)
	}

	badgerOptions.Logger = &badgerLogger{SugaredLogger: c.GetLogger().Sugar()}
	uid := badgerOptions.Dir + badgerOptions.ValueDir
	if i, ok := enabledBadgerInstances[uid]; ok && !badgerOptions.InMemory {
		return i, nil
	}

	db, e := badger.Open(badgerOptions)
	if e != nil {
		c.GetLogger().Sugar().Error("Impossible to open the Badger DB.", e)
		return nil, e
	}

	i := &Badger{DB: db, logger: c.GetLogger()}
	if !badgerOptions.InMemory {
		enabledBadgerInstances[uid] = i
	}

	return i, nil
}

// Name returns the storer name
func (provider *Badger) Name() string {
	return "BADGER"
}

func badgerEntryPartitionPrefix(partition string) []byte {
	return []byte(badgerEntryPrefix + partition + badgerSeparator)
}

func (provider *Badger) listWithPrefix(prefix []byte) []string {
	keys := []string{}

	e := provider.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
		}
		return nil
	})

	if e != nil {
		return []string{}
	}

	return keys
}

// ListPartitions method returns the registered partitions
func (provider *Badger) ListPartitions() []string {
	return uniqueSorted(provider.listWithPrefix([]byte(badgerPartitionPrefix)))
}

// CreatePartition method registers the partition, it's a no-op when it already exists
func (provider *Badger) CreatePartition(name string) error {
	return provider.DB.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerPartitionPrefix+name), []byte{})
	})
}

// DeletePartition method drops the partition and every entry it holds
func (provider *Badger) DeletePartition(name string) error {
	if err := provider.DB.DropPrefix(badgerEntryPartitionPrefix(name)); err != nil {
		provider.logger.Sugar().Errorf("Impossible to drop the partition %s from Badger, %v", name, err)
		return err
	}

	return provider.DB.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerPartitionPrefix + name))
	})
}

// ListKeys method returns the list of existing keys in the partition
func (provider *Badger) ListKeys(partition string) []string {
	return provider.listWithPrefix(badgerEntryPartitionPrefix(partition))
}

// Get method returns the stored value if exists, nil otherwise
func (provider *Badger) Get(partition, key string) []byte {
	var result []byte

	_ = provider.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(append(badgerEntryPartitionPrefix(partition), key...))
		if err != nil {
			return err
		}

		result, err = item.ValueCopy(nil)
		return err
	})

	return result
}

// Set method will store the value in the partition
func (provider *Badger) Set(partition, key string, value []byte) error {
	err := provider.DB.Update(func(txn *badger.Txn) error {
		if _, e := txn.Get([]byte(badgerPartitionPrefix + partition)); e != nil {
			if errors.Is(e, badger.ErrKeyNotFound) {
				return &PartitionNotFoundError{Partition: partition}
			}
			return e
		}

		return txn.Set(append(badgerEntryPartitionPrefix(partition), key...), value)
	})

	if err != nil {
		provider.logger.Sugar().Errorf("Impossible to set value into Badger, %v", err)
	}

	return err
}

// Delete method will delete the entry of the partition if exists
func (provider *Badger) Delete(partition, key string) error {
	return provider.DB.Update(func(txn *badger.Txn) error {
		return txn.Delete(append(badgerEntryPartitionPrefix(partition), key...))
	})
}

// Init method will
func (provider *Badger) Init() error {
	return nil
}

// Reset method will reset or close provider
func (provider *Badger) Reset() error {
	return provider.DB.DropAll()
}
