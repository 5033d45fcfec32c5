package kvdb

const RebuildsBucket = "rebuilds"

var buckets = []string{RebuildsBucket}

type DB interface {
	Set(bucket string, key string, value []byte) error
	Get(bucket string, key string) ([]byte, error)
	Delete(bucket string, key string) error
	Keys(bucket string) ([]string, error)
	Close() error
}
