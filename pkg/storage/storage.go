package storage

import (
	"fmt"
	"sort"

	"github.com/darkweak/offline-gateway/configurationtypes"
	"github.com/darkweak/offline-gateway/pkg/storage/types"
)

type StorerInstanciator func(configurationtypes.AbstractConfigurationInterface) (types.Storer, error)

var storageMap = map[string]StorerInstanciator{
	"etcd":   EtcdConnectionFactory,
	"redis":  RedisConnectionFactory,
	"nuts":   NutsConnectionFactory,
	"badger": BadgerConnectionFactory,
}

func getStorageNameFromConfiguration(configuration configurationtypes.AbstractConfigurationInterface) string {
	s := configuration.GetStorage()
	if s.Etcd.Configuration != nil {
		return "etcd"
	} else if s.Redis.URL != "" || s.Redis.Configuration != nil {
		return "redis"
	} else if s.Nuts.Path != "" || s.Nuts.Configuration != nil {
		return "nuts"
	}

	return "badger"
}

// NewStorage instanciates and initializes the backend selected by the configuration
func NewStorage(configuration configurationtypes.AbstractConfigurationInterface) (types.Storer, error) {
	storerName := getStorageNameFromConfiguration(configuration)
	newStorage, found := storageMap[storerName]
	if !found {
		return nil, fmt.Errorf("storer with name %s not found", storerName)
	}

	instance, err := newStorage(configuration)
	if err != nil {
		return nil, err
	}
	if err = instance.Init(); err != nil {
		return nil, err
	}
	configuration.GetLogger().Sugar().Debugf("Run with the %s storer", instance.Name())

	return instance, nil
}

func uniqueSorted(values []string) []string {
	present := make(map[string]bool)
	s := []string{}

	for _, current := range values {
		if _, found := present[current]; !found {
			present[current] = true
			s = append(s, current)
		}
	}
	sort.Strings(s)

	return s
}

// PartitionNotFoundError is returned when writing into a partition that was never created
type PartitionNotFoundError struct {
	Partition string
}

func (p *PartitionNotFoundError) Error() string {
	return fmt.Sprintf("the partition %s does not exist", p.Partition)
}
