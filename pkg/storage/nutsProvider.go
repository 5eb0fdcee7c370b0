package storage

import (
	"encoding/json"

	t "github.com/darkweak/offline-gateway/configurationtypes"
	"github.com/darkweak/offline-gateway/pkg/storage/types"
	"github.com/imdario/mergo"
	"github.com/xujiajun/nutsdb"
	"go.uber.org/zap"
)

var nutsInstanceMap = map[string]*nutsdb.DB{}

// Nuts provider type, each partition lives in its own bucket
type Nuts struct {
	*nutsdb.DB
	logger *zap.Logger
}

var _ types.Storer = (*Nuts)(nil)

// NutsConnectionFactory function create new Nuts instance
func NutsConnectionFactory(c t.AbstractConfigurationInterface) (types.Storer, error) {
	nutsConfiguration := c.GetStorage().Nuts
	nutsOptions := nutsdb.DefaultOptions
	nutsOptions.Dir = "/tmp/offline-gateway-nuts"
	if nutsConfiguration.Configuration != nil {
		var parsedNuts nutsdb.Options
		if b, e := json.Marshal(nutsConfiguration.Configuration); e == nil {
			if e = json.Unmarshal(b, &parsedNuts); e != nil {
				c.GetLogger().Sugar().Error("Impossible to parse the configuration for the Nuts provider", e)
			}
		}

		if err := mergo.Merge(&nutsOptions, parsedNuts, mergo.WithOverride); err != nil {
			c.GetLogger().Sugar().Error("An error occurred during the nutsOptions merge from the default options with your configuration.")
		}
	} else {
		nutsOptions.RWMode = nutsdb.MMap
	}
	if nutsConfiguration.Path != "" {
		nutsOptions.Dir = nutsConfiguration.Path
	}

	if instance, ok := nutsInstanceMap[nutsOptions.Dir]; ok && instance != nil {
		return &Nuts{DB: instance, logger: c.GetLogger()}, nil
	}

	db, e := nutsdb.Open(nutsOptions)
	if e != nil {
		c.GetLogger().Sugar().Error("Impossible to open the Nuts DB.", e)
		return nil, e
	}

	nutsInstanceMap[nutsOptions.Dir] = db

	return &Nuts{DB: db, logger: c.GetLogger()}, nil
}

// Name returns the storer name
func (provider *Nuts) Name() string {
	return "NUTS"
}

func (provider *Nuts) bucketKeys(bucket string) []string {
	keys := []string{}

	_ = provider.DB.View(func(tx *nutsdb.Tx) error {
		entries, _ := tx.GetAll(bucket)
		for _, entry := range entries {
			keys = append(keys, string(entry.Key))
		}
		return nil
	})

	return keys
}

func (provider *Nuts) hasPartition(name string) bool {
	found := false
	_ = provider.DB.View(func(tx *nutsdb.Tx) error {
		entry, e := tx.Get(types.RegistryName, []byte(name))
		found = e == nil && entry != nil
		return nil
	})

	return found
}

// ListPartitions method returns the registered partitions
func (provider *Nuts) ListPartitions() []string {
	return uniqueSorted(provider.bucketKeys(types.RegistryName))
}

// CreatePartition method registers the partition bucket
func (provider *Nuts) CreatePartition(name string) error {
	return provider.DB.Update(func(tx *nutsdb.Tx) error {
		return tx.Put(types.RegistryName, []byte(name), []byte{}, 0)
	})
}

// DeletePartition method drops the partition bucket and unregisters it
func (provider *Nuts) DeletePartition(name string) error {
	keys := provider.bucketKeys(name)
	err := provider.DB.Update(func(tx *nutsdb.Tx) error {
		for _, k := range keys {
			if e := tx.Delete(name, []byte(k)); e != nil {
				return e
			}
		}
		return tx.Delete(types.RegistryName, []byte(name))
	})
	if err != nil {
		provider.logger.Sugar().Errorf("Impossible to drop the partition %s from Nuts, %v", name, err)
		return err
	}

	_ = provider.DB.Update(func(tx *nutsdb.Tx) error {
		return tx.DeleteBucket(1, name)
	})

	return nil
}

// ListKeys method returns the list of existing keys in the partition
func (provider *Nuts) ListKeys(partition string) []string {
	return provider.bucketKeys(partition)
}

// Get method returns the stored value if exists, nil otherwise
func (provider *Nuts) Get(partition, key string) (item []byte) {
	_ = provider.DB.View(func(tx *nutsdb.Tx) error {
		i, e := tx.Get(partition, []byte(key))
		if i != nil {
			item = i.Value
		}
		return e
	})

	return
}

// Set method will store the value in the partition bucket
func (provider *Nuts) Set(partition, key string, value []byte) error {
	if !provider.hasPartition(partition) {
		return &PartitionNotFoundError{Partition: partition}
	}

	err := provider.DB.Update(func(tx *nutsdb.Tx) error {
		return tx.Put(partition, []byte(key), value, 0)
	})

	if err != nil {
		provider.logger.Sugar().Errorf("Impossible to set value into Nuts, %v", err)
	}

	return err
}

// Delete method will delete the entry of the partition if exists
func (provider *Nuts) Delete(partition, key string) error {
	return provider.DB.Update(func(tx *nutsdb.Tx) error {
		return tx.Delete(partition, []byte(key))
	})
}

// Init method will
func (provider *Nuts) Init() error {
	return nil
}

// Reset method will reset or close provider
func (provider *Nuts) Reset() error {
	for _, partition := range provider.ListPartitions() {
		if err := provider.DeletePartition(partition); err != nil {
			return err
		}
	}

	return nil
}
