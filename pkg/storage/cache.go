// Package storage persists decompilation results between runs so repeated
// runs over the same place file skip the service for known chunks.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	bolt "go.etcd.io/bbolt"

	"github.com/cutzel/oracle-postprocess/pkg/decompiler"
)

var resultsBucket = []byte("results")

// Record is the stored form of one decompilation outcome, keyed by the
// payload hash.
type Record struct {
	Source  string
	Failure string
	Success bool
	SavedAt time.Time
	Tool    string
}

// Cache is a bolt backed result store.
type Cache struct {
	db   *bolt.DB
	path string
	tool string
}

var _ decompiler.Store = (*Cache)(nil)

// DefaultPath places the cache under the user cache directory.
func DefaultPath() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", eris.Wrap(err, "failed to resolve the user cache directory")
	}
	return filepath.Join(base, "oracle-postprocess", "results.db"), nil
}

// Open opens or creates the cache database at path. The tool version is
// recorded in new entries.
func Open(path, toolVersion string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, eris.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open the cache database %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(resultsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, eris.Wrap(err, "failed to prepare the cache database")
	}

	return &Cache{db: db, path: path, tool: toolVersion}, nil
}

// Path returns the database location.
func (c *Cache) Path() string {
	return c.path
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// GetResult implements decompiler.Store.
func (c *Cache) GetResult(hash string) (decompiler.Result, bool, error) {
	var record *Record
	err := c.db.View(func(tx *bolt.Tx) error {
		item := tx.Bucket(resultsBucket).Get([]byte(hash))
		if item == nil {
			return nil
		}

		record = new(Record)
		return json.Unmarshal(item, record)
	})
	if err != nil {
		return decompiler.Result{}, false, eris.Wrapf(err, "failed to read cache entry %s", hash)
	}
	if record == nil {
		return decompiler.Result{}, false, nil
	}

	if record.Success {
		return decompiler.Result{Source: record.Source}, true, nil
	}
	return decompiler.Result{Err: decompiler.DecompileError{Message: record.Failure}}, true, nil
}

// PutResult implements decompiler.Store.
func (c *Cache) PutResult(hash string, res decompiler.Result) error {
	record := Record{
		SavedAt: time.Now(),
		Tool:    c.tool,
	}
	if res.Err == nil {
		record.Success = true
		record.Source = res.Source
	} else {
		record.Failure = res.Err.Error()
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		return eris.Wrap(err, "failed to encode the cache entry")
	}

	return c.db.Batch(func(tx *bolt.Tx) error {
		return tx.Bucket(resultsBucket).Put([]byte(hash), encoded)
	})
}

// Stats describes the cache contents.
type Stats struct {
	Entries   int
	Successes int
	Failures  int
	SizeBytes int64
}

func (c *Cache) Stats() (Stats, error) {
	var stats Stats
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(resultsBucket).ForEach(func(k, v []byte) error {
			stats.Entries++

			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return eris.Wrapf(err, "failed to decode cache entry %s", k)
			}
			if record.Success {
				stats.Successes++
			} else {
				stats.Failures++
			}
			return nil
		})
	})
	if err != nil {
		return Stats{}, err
	}

	if info, err := os.Stat(c.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}

// Clear drops every stored result.
func (c *Cache) Clear() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(resultsBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucket(resultsBucket)
		return err
	})
}
