package redis

import (
	"context"
	"fmt"
)

// Trim caps the stream at roughly the configured max length and returns the
// number of entries removed. XADD already trims approximately; this catches
// entries written by other producers or before the cap was lowered.
func (c *Client) Trim(ctx context.Context) (int64, error) {
	if c.maxLen <= 0 {
		return 0, nil
	}
	removed, err := c.rdb.XTrimMaxLenApprox(ctx, c.stream, c.maxLen, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("xtrim on %s failed: %w", c.stream, err)
	}
	if removed > 0 {
		c.log.Info("Trimmed %d entries from stream %s", removed, c.stream)
	} else {
		c.log.Debug("Stream %s within %d entries", c.stream, c.maxLen)
	}
	return removed, nil
}
