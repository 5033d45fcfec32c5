package index

// MetadataStore is the key-value storage the rebuild history is persisted in.
type MetadataStore interface {
	Set(bucket string, key string, value []byte) error
	Get(bucket string, key string) ([]byte, error)
	Keys(bucket string) ([]string, error)
}
