package transport

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"wsfuzz/internal/domain"
)

var pingIntervalField = regexp.MustCompile(`"pingInterval"\s*:\s*(\d+)`)

// ParsePingInterval reads the Engine.IO pingInterval (milliseconds) from an
// open packet, returning def when it is absent or not a positive integer.
func ParsePingInterval(open string, def time.Duration) time.Duration {
	m := pingIntervalField.FindStringSubmatch(open)
	if m == nil {
		return def
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || ms <= 0 || ms > int64(24*time.Hour/time.Millisecond) {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// keepalive tracks server pings against the advertised interval.
type keepalive struct {
	interval time.Duration
	done     chan struct{}
	once     sync.Once

	mu       sync.Mutex
	lastPing time.Time
}

func (k *keepalive) stop() {
	k.once.Do(func() { close(k.done) })
}

func (k *keepalive) pinged() {
	k.mu.Lock()
	k.lastPing = time.Now()
	k.mu.Unlock()
}

func (k *keepalive) since() time.Duration {
	k.mu.Lock()
	defer k.mu.Unlock()
	return time.Since(k.lastPing)
}

// startKeepalive replaces any running watchdog with one for interval.
func (c *Conn) startKeepalive(interval time.Duration) {
	k := &keepalive{interval: interval, done: make(chan struct{}), lastPing: time.Now()}

	c.mu.Lock()
	if c.keepalive != nil {
		c.keepalive.stop()
	}
	c.keepalive = k
	c.mu.Unlock()

	c.logger.Debug("keepalive scheduled", "interval", interval)
	go c.watch(k)
}

func (c *Conn) serverPinged() {
	c.mu.Lock()
	k := c.keepalive
	c.mu.Unlock()
	if k != nil {
		k.pinged()
	}
}

// watch reports when the server has not pinged for longer than one and a
// half intervals.
func (c *Conn) watch(k *keepalive) {
	t := time.NewTicker(k.interval)
	defer t.Stop()
	for {
		select {
		case <-k.done:
			return
		case <-t.C:
			if gap := k.since(); gap > k.interval+k.interval/2 {
				c.logger.Warn("server ping overdue", "since", gap, "interval", k.interval)
				c.report(domain.StateConnected, fmt.Sprintf("Server ping overdue (%s since last ping)", gap.Round(time.Millisecond)))
			}
		}
	}
}
