package extract

import (
	"fmt"
	"time"
)

// FormatDuration converts a millisecond count into HH:MM:SS.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	seconds := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}

func (e *Extractor) formatDate(epoch int64) string {
	t := e.clock.Now()
	if epoch != 0 {
		t = time.Unix(epoch, 0)
	}
	return e.dateFormat.FormatString(t.In(e.location))
}

func (e *Extractor) collectionTime() string {
	return e.dateFormat.FormatString(e.clock.Now().In(e.location))
}
