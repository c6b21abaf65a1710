package watch

import (
	"strings"
	"time"
)

const activityDots = 5

// Activity lights up on each event and fades over ten seconds.
type Activity struct {
	lastEvent time.Time
}

func (a *Activity) OnEvent(at time.Time) {
	a.lastEvent = at
}

func (a Activity) LastEvent() time.Time { return a.lastEvent }

// Lit returns how many dots are on at now.
func (a Activity) Lit(now time.Time) int {
	if a.lastEvent.IsZero() {
		return 0
	}
	elapsed := now.Sub(a.lastEvent)
	lit := activityDots - int(elapsed/(2*time.Second))
	return max(0, min(activityDots, lit))
}

func (a Activity) Render(theme Theme, now time.Time) string {
	lit := a.Lit(now)
	var b strings.Builder
	for i := range activityDots {
		if i < lit {
			b.WriteString(theme.ActivityOn.Render("●"))
		} else {
			b.WriteString(theme.ActivityOff.Render("○"))
		}
	}
	return b.String()
}
