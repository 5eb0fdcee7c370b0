package types

// RegistryName is the partition holding nothing but the partitions registry on
// the backends that need a dedicated namespace
const RegistryName = "offline-gateway-partitions"

// Storer is a partitioned byte store. Partitions must be created before being
// written and deleting a partition drops every entry it holds.
type Storer interface {
	ListPartitions() []string
	CreatePartition(name string) error
	DeletePartition(name string) error
	ListKeys(partition string) []string
	Get(partition, key string) []byte
	Set(partition, key string, value []byte) error
	Delete(partition, key string) error
	Init() error
	Name() string
	Reset() error
}
