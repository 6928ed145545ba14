package core

import "sync"

// RomEntry describes one catalog entry as announced by the rom service.
type RomEntry struct {
	Hash    string
	Index   int
	Name    string
	Image   []byte
	Default bool
}

// RomCatalog mirrors the external ROM registry: entries keyed by content
// hash, addressable by numeric index for short "game#N" selectors, plus the
// platform default hash.
type RomCatalog struct {
	mu          sync.RWMutex
	byHash      map[string]*RomEntry
	defaultHash string
}

func NewRomCatalog() *RomCatalog {
	return &RomCatalog{byHash: make(map[string]*RomEntry)}
}

// Announce records a hash advertisement, optionally flagged as the platform
// default.
func (c *RomCatalog) Announce(hash string, isDefault bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.byHash[hash]
	if !ok {
		entry = &RomEntry{Hash: hash}
		c.byHash[hash] = entry
	}
	if isDefault {
		entry.Default = true
		c.defaultHash = hash
	}
}

// Merge applies catalog metadata for a hash. It reports whether the hash was
// previously unseen, in which case the caller requests its preview image.
func (c *RomCatalog) Merge(hash string, index int, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.byHash[hash]
	if !ok {
		c.byHash[hash] = &RomEntry{Hash: hash, Index: index, Name: name}
		return true
	}
	entry.Index = index
	entry.Name = name
	return false
}

// SetImage stores a preview image for a known hash.
func (c *RomCatalog) SetImage(hash string, image []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.byHash[hash]
	if !ok {
		return false
	}
	entry.Image = image
	return true
}

// DefaultHash returns the platform default content hash, if known.
func (c *RomCatalog) DefaultHash() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultHash, c.defaultHash != ""
}

// ByIndex resolves a numeric game selector to its entry.
func (c *RomCatalog) ByIndex(index int) (RomEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, entry := range c.byHash {
		if entry.Index == index {
			return *entry, true
		}
	}
	return RomEntry{}, false
}

// Preview returns the catalog preview image for a hash, or nil.
func (c *RomCatalog) Preview(hash string) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry, ok := c.byHash[hash]; ok {
		return entry.Image
	}
	return nil
}
