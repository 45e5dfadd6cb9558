package mrf49xa

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"
)

// DefaultTimestampFormat is used by the monitor when none is given.
const DefaultTimestampFormat = "%H:%M:%S"

// Monitor prints one line per packet, for watching traffic.
type Monitor struct {
	mu  sync.Mutex
	w   io.Writer
	fmt *strftime.Strftime
	now func() time.Time
}

// NewMonitor writes to w with a strftime style time stamp.  An empty
// format leaves the time stamp off.
func NewMonitor(w io.Writer, timestampFormat string) (*Monitor, error) {
	var m = &Monitor{w: w, now: time.Now}

	if timestampFormat != "" {
		var f, err = strftime.New(timestampFormat)
		if err != nil {
			return nil, fmt.Errorf("time stamp format %q: %w", timestampFormat, err)
		}
		m.fmt = f
	}

	return m, nil
}

// Packet prints p, e.g. "[12:00:01] rx serial[5] 68 65 6c 6c 6f".
func (m *Monitor) Packet(d Direction, p *Packet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fmt != nil {
		fmt.Fprintf(m.w, "[%s] ", m.fmt.FormatString(m.now()))
	}

	fmt.Fprintf(m.w, "%s %s\n", d, p)
}
