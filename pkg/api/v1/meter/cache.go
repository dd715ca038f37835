package meter

import "sync"

// Cache keeps the last meter reading so each slot's consumption can be computed.
type Cache struct {
	data *Data
	sync.Mutex
}

// Swap stores d and returns the energy in Wh used since the previous reading.
// ok is false for the first reading or when the meter counter went backwards.
func (c *Cache) Swap(d *Data) (wh float64, ok bool) {
	c.Lock()
	defer c.Unlock()
	prev := c.data
	c.data = d
	if prev == nil || d == nil || d.Total_WH < prev.Total_WH {
		return 0, false
	}
	return d.Total_WH - prev.Total_WH, true
}
