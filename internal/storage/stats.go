package storage

type accessKind int

const (
	accessRead accessKind = iota
	accessWrite
	accessDelete
)

// AccessStats counts key accesses made through a Client while debug mode is
// on
type AccessStats struct {
	Reads      int
	Writes     int
	Deletes    int
	ReadKeys   []string
	WriteKeys  []string
	DeleteKeys []string
}

// SetDebug toggles access statistics
func (c *Client) SetDebug(debug bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug = debug
}

// AccessStats returns a copy of the collected statistics
func (c *Client) AccessStats() AccessStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.ReadKeys = append([]string(nil), c.stats.ReadKeys...)
	s.WriteKeys = append([]string(nil), c.stats.WriteKeys...)
	s.DeleteKeys = append([]string(nil), c.stats.DeleteKeys...)
	return s
}

// ResetAccessStats clears the collected statistics
func (c *Client) ResetAccessStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = AccessStats{}
}

func (c *Client) recordAccess(kind accessKind, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.debug {
		return
	}

	switch kind {
	case accessRead:
		c.stats.Reads++
		c.stats.ReadKeys = append(c.stats.ReadKeys, key)
	case accessWrite:
		c.stats.Writes++
		c.stats.WriteKeys = append(c.stats.WriteKeys, key)
	case accessDelete:
		c.stats.Deletes++
		c.stats.DeleteKeys = append(c.stats.DeleteKeys, key)
	}
}
