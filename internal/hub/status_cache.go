package hub

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"
)

var statusJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// statusCache holds worker status records in an in-memory-only buntdb
// database (":memory:", never opened against a file), matching spec.md
// §5's "ephemeral worker status is never durable; a restart of the
// ingestion service loses it and workers are expected to re-announce on
// reconnect."
type statusCache struct {
	db *buntdb.DB
}

func newStatusCache() *statusCache {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		// ":memory:" cannot fail to open; a non-nil error here means
		// buntdb itself is broken beyond anything a caller can recover
		// from.
		panic(fmt.Sprintf("hub: in-memory status cache failed to open: %v", err))
	}
	return &statusCache{db: db}
}

func (c *statusCache) put(id string, s StatusRecord) error {
	b, err := statusJSON.Marshal(s)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(id, string(b), nil)
		return err
	})
}

func (c *statusCache) get(id string) (StatusRecord, bool) {
	var s StatusRecord
	var found bool
	_ = c.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(id)
		if err != nil {
			return nil
		}
		if statusJSON.Unmarshal([]byte(v), &s) == nil {
			found = true
		}
		return nil
	})
	return s, found
}

func (c *statusCache) markDisconnected(id string) error {
	s, ok := c.get(id)
	if !ok {
		return nil
	}
	s.State = "disconnected"
	return c.put(id, s)
}

func (c *statusCache) all() map[string]StatusRecord {
	out := make(map[string]StatusRecord)
	_ = c.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(key, value string) bool {
			var s StatusRecord
			if statusJSON.Unmarshal([]byte(value), &s) == nil {
				out[key] = s
			}
			return true
		})
	})
	return out
}
