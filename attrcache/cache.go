// Package attrcache is the durable, address-scoped store for locally
// decrypted attributes and mint-time asset references. It is a cache of the
// owner's private knowledge, never a system of record: the chain stays
// authoritative for everything revealed.
package attrcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	bolt "go.etcd.io/bbolt"

	"github.com/branba-810/FHE-BlindNFT/state"
)

var (
	decryptedAttrsBucket = []byte("decrypted_attrs")
	uploadedAssetsBucket = []byte("uploaded_assets")
)

// ErrStaleAddress is returned for writes scoped to an address that is no
// longer the active one. Results of in-flight operations started before an
// address switch must be dropped, not written through.
var ErrStaleAddress = errors.New("attrcache: write for inactive address")

// Cache persists {tokenId -> attributes} and {tokenId -> asset ref} per
// owner address, surviving process restarts. Mutations for one address are
// serialized; different addresses proceed independently.
type Cache struct {
	db *bolt.DB

	mu     sync.Mutex
	active common.Address
	hasAct bool
	locks  map[common.Address]*sync.Mutex
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Cache, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("attrcache: empty db path")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("attrcache: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(decryptedAttrsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(uploadedAssetsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("attrcache: init buckets: %w", err)
	}
	return &Cache{db: db, locks: make(map[common.Address]*sync.Mutex)}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// SetActiveAddress marks addr as the session's connected address. Writes
// scoped to any other address are rejected afterwards, so that stale
// in-flight results never land in the new session's view. Entries persisted
// under previous addresses stay on disk and become visible again when that
// address reconnects.
func (c *Cache) SetActiveAddress(addr common.Address) {
	c.mu.Lock()
	c.active = addr
	c.hasAct = true
	c.mu.Unlock()
}

// ClearActiveAddress drops the active-address restriction (disconnect).
func (c *Cache) ClearActiveAddress() {
	c.mu.Lock()
	c.hasAct = false
	c.mu.Unlock()
}

func (c *Cache) checkActive(addr common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasAct && c.active != addr {
		return ErrStaleAddress
	}
	return nil
}

func (c *Cache) addrLock(addr common.Address) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[addr]
	if !ok {
		l = &sync.Mutex{}
		c.locks[addr] = l
	}
	return l
}

// Keys are "<lowercase address>/<decimal token id>" so a cursor prefix scan
// yields one address's entries.
func entryKey(addr common.Address, tokenID uint64) []byte {
	return []byte(strings.ToLower(addr.Hex()) + "/" + strconv.FormatUint(tokenID, 10))
}

func addrPrefix(addr common.Address) []byte {
	return []byte(strings.ToLower(addr.Hex()) + "/")
}

// Put records decrypted attributes for (addr, tokenID). Rejected with
// ErrStaleAddress if addr is no longer the connected address.
func (c *Cache) Put(addr common.Address, tokenID uint64, attrs state.Attributes) error {
	if err := c.checkActive(addr); err != nil {
		return err
	}
	l := c.addrLock(addr)
	l.Lock()
	defer l.Unlock()

	bz, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(decryptedAttrsBucket)
		if b == nil {
			return fmt.Errorf("decrypted_attrs bucket missing")
		}
		return b.Put(entryKey(addr, tokenID), bz)
	})
}

// Get returns all decrypted attributes stored under addr.
func (c *Cache) Get(addr common.Address) (map[uint64]state.Attributes, error) {
	out := make(map[uint64]state.Attributes)
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(decryptedAttrsBucket)
		if b == nil {
			return nil
		}
		return scanPrefix(b, addrPrefix(addr), func(tokenID uint64, v []byte) error {
			var attrs state.Attributes
			if err := json.Unmarshal(v, &attrs); err != nil {
				// Corrupt entry: skip rather than fail the whole view.
				return nil
			}
			out[tokenID] = attrs
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Lookup returns the attributes for one token, if cached.
func (c *Cache) Lookup(addr common.Address, tokenID uint64) (state.Attributes, bool, error) {
	var attrs state.Attributes
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(decryptedAttrsBucket)
		if b == nil {
			return nil
		}
		v := b.Get(entryKey(addr, tokenID))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &attrs); err != nil {
			return nil
		}
		found = true
		return nil
	})
	return attrs, found, err
}

// Evict removes the decrypted attributes for (addr, tokenID), along with
// any asset reference recorded for the token. Called once a reveal is
// confirmed on-chain and the public record took over.
func (c *Cache) Evict(addr common.Address, tokenID uint64) error {
	if err := c.checkActive(addr); err != nil {
		return err
	}
	l := c.addrLock(addr)
	l.Lock()
	defer l.Unlock()

	return c.db.Update(func(tx *bolt.Tx) error {
		key := entryKey(addr, tokenID)
		if b := tx.Bucket(decryptedAttrsBucket); b != nil {
			if err := b.Delete(key); err != nil {
				return err
			}
		}
		if b := tx.Bucket(uploadedAssetsBucket); b != nil {
			if err := b.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear removes every entry stored under addr.
func (c *Cache) Clear(addr common.Address) error {
	if err := c.checkActive(addr); err != nil {
		return err
	}
	l := c.addrLock(addr)
	l.Lock()
	defer l.Unlock()

	return c.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{decryptedAttrsBucket, uploadedAssetsBucket} {
			b := tx.Bucket(name)
			if b == nil {
				continue
			}
			var keys [][]byte
			if err := scanPrefixRaw(b, addrPrefix(addr), func(k []byte) error {
				keys = append(keys, append([]byte(nil), k...))
				return nil
			}); err != nil {
				return err
			}
			for _, k := range keys {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// PutAssetRef records the content-addressed image locator uploaded for a
// freshly minted token, bridging the window before the canonical URI is
// resolvable on-chain.
func (c *Cache) PutAssetRef(addr common.Address, tokenID uint64, ref string) error {
	if err := c.checkActive(addr); err != nil {
		return err
	}
	if strings.TrimSpace(ref) == "" {
		return fmt.Errorf("attrcache: empty asset ref")
	}
	l := c.addrLock(addr)
	l.Lock()
	defer l.Unlock()

	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(uploadedAssetsBucket)
		if b == nil {
			return fmt.Errorf("uploaded_assets bucket missing")
		}
		return b.Put(entryKey(addr, tokenID), []byte(ref))
	})
}

// AssetRef returns the recorded asset locator for one token, empty if none.
func (c *Cache) AssetRef(addr common.Address, tokenID uint64) (string, error) {
	var ref string
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(uploadedAssetsBucket)
		if b == nil {
			return nil
		}
		if v := b.Get(entryKey(addr, tokenID)); v != nil {
			ref = string(v)
		}
		return nil
	})
	return ref, err
}

// View assembles the cache's knowledge of one token for projection.
func (c *Cache) View(addr common.Address, tokenID uint64) (state.CacheView, error) {
	var view state.CacheView
	attrs, ok, err := c.Lookup(addr, tokenID)
	if err != nil {
		return view, err
	}
	if ok {
		view.Attrs = &attrs
	}
	view.AssetRef, err = c.AssetRef(addr, tokenID)
	return view, err
}

func scanPrefix(b *bolt.Bucket, prefix []byte, fn func(tokenID uint64, v []byte) error) error {
	cur := b.Cursor()
	for k, v := cur.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = cur.Next() {
		id, err := strconv.ParseUint(string(k[len(prefix):]), 10, 64)
		if err != nil {
			continue
		}
		if err := fn(id, v); err != nil {
			return err
		}
	}
	return nil
}

func scanPrefixRaw(b *bolt.Bucket, prefix []byte, fn func(k []byte) error) error {
	cur := b.Cursor()
	for k, _ := cur.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = cur.Next() {
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}
