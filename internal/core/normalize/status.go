package normalize

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/charleschow/sports-lounge/internal/core/model"
)

var defaultStatus = map[string]model.Status{
	"scheduled":   model.StatusScheduled,
	"created":     model.StatusScheduled,
	"time-tbd":    model.StatusScheduled,
	"postponed":   model.StatusScheduled,
	"inprogress":  model.StatusLive,
	"halftime":    model.StatusLive,
	"complete":    model.StatusFinal,
	"closed":      model.StatusFinal,
	"cancelled":   model.StatusFinal,
	"unnecessary": model.StatusFinal,
}

var eastern = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}

// mapStatus looks raw up in table; unknown values are scheduled.
func mapStatus(table map[string]model.Status, raw string) model.Status {
	if s, ok := table[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return model.StatusScheduled
}

// FormatStartTime renders an RFC 3339 timestamp as "7:00 PM ET".
// Unparsable input is returned unchanged.
func FormatStartTime(iso string) string {
	if iso == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return iso
	}
	return t.In(eastern).Format("3:04 PM") + " ET"
}

// periodAndClock reads the current period from quarter, then half, then the
// length of the periods list. NBA reports quarters; NCAAMB reports halves.
func periodAndClock(game map[string]any) (int, string) {
	period := extractInt(game, "quarter")
	if period == 0 {
		period = extractInt(game, "half")
	}
	if period == 0 {
		period = len(extractArray(game, "periods"))
	}
	return period, extractString(game, "clock")
}
