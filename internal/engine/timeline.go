package engine

import (
	"sort"
	"time"
)

// TimelineWindow bounds how far back a timeline reaches.
type TimelineWindow string

const (
	WindowWeek    TimelineWindow = "week"
	WindowMonth   TimelineWindow = "month"
	WindowQuarter TimelineWindow = "quarter"
	WindowYear    TimelineWindow = "year"
)

// Duration returns the window length. Unknown windows default to a month.
func (w TimelineWindow) Duration() time.Duration {
	const day = 24 * time.Hour
	switch w {
	case WindowWeek:
		return 7 * day
	case WindowQuarter:
		return 91 * day
	case WindowYear:
		return 365 * day
	default:
		return 30 * day
	}
}

// keyMomentSignificance is the key-moment bar for deltas. Stricter than
// plain delta detection: a 1.5-point delta scores 0.375, nowhere near it.
const keyMomentSignificance = 0.75

// TimelineEventKind tags what a timeline entry carries.
type TimelineEventKind string

const (
	EventScore TimelineEventKind = "score"
	EventDelta TimelineEventKind = "delta"
)

// TimelineEvent is one chronological entry in a participant timeline.
type TimelineEvent struct {
	Kind      TimelineEventKind `json:"kind"`
	Time      time.Time         `json:"time"`
	Score     *MoodScore        `json:"score,omitempty"`
	Delta     *MoodDelta        `json:"delta,omitempty"`
	KeyMoment bool              `json:"key_moment,omitempty"`
	Note      string            `json:"note,omitempty"`
}

// Timeline is the ordered emotional history of one participant within a
// bounded window.
type Timeline struct {
	ParticipantID    string          `json:"participant_id"`
	Window           TimelineWindow  `json:"window"`
	Events           []TimelineEvent `json:"events"`
	InsufficientData bool            `json:"insufficient_data,omitempty"`
}

// BuildTimeline orders scores and deltas chronologically within the window
// and tags key moments: local extrema in the mood series plus deltas whose
// significance clears the key-moment bar. Fewer than two data points yields
// an empty flagged timeline, never an error. The event ceiling keeps key
// moments in preference to ordinary events.
func BuildTimeline(scores []MoodScore, deltas []MoodDelta, window TimelineWindow, limit int) Timeline {
	tl := Timeline{Window: window}
	if len(scores) > 0 {
		tl.ParticipantID = scores[0].ParticipantID
	}
	if len(scores) < 2 {
		tl.InsufficientData = true
		return tl
	}

	ordered := make([]MoodScore, len(scores))
	copy(ordered, scores)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	// Window ends at the newest score.
	end := ordered[len(ordered)-1].Timestamp
	start := end.Add(-window.Duration())

	var events []TimelineEvent
	for i, s := range ordered {
		if s.Timestamp.Before(start) {
			continue
		}
		sc := s
		ev := TimelineEvent{Kind: EventScore, Time: s.Timestamp, Score: &sc}
		if isLocalExtremum(ordered, i) {
			ev.KeyMoment = true
			ev.Note = "local extremum"
		}
		events = append(events, ev)
	}
	for _, d := range deltas {
		if d.ToTime.Before(start) {
			continue
		}
		dl := d
		ev := TimelineEvent{Kind: EventDelta, Time: d.ToTime, Delta: &dl}
		if d.Significance >= keyMomentSignificance {
			ev.KeyMoment = true
			ev.Note = "high-significance transition"
		}
		events = append(events, ev)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.Before(events[j].Time)
	})

	if limit > 0 && len(events) > limit {
		events = trimToLimit(events, limit)
	}

	tl.Events = events
	return tl
}

// isLocalExtremum reports whether the score at i is a local minimum or
// maximum of the ordered series. Endpoints never qualify: a series edge is
// not a turning point.
func isLocalExtremum(ordered []MoodScore, i int) bool {
	if i == 0 || i == len(ordered)-1 {
		return false
	}
	v := ordered[i].Value
	prev, next := ordered[i-1].Value, ordered[i+1].Value
	return (v > prev && v > next) || (v < prev && v < next)
}

// trimToLimit drops non-key-moment events first, then oldest key moments.
func trimToLimit(events []TimelineEvent, limit int) []TimelineEvent {
	keyCount := 0
	for _, ev := range events {
		if ev.KeyMoment {
			keyCount++
		}
	}

	out := make([]TimelineEvent, 0, limit)
	ordinaryBudget := limit - keyCount
	for _, ev := range events {
		if ev.KeyMoment {
			out = append(out, ev)
			continue
		}
		if ordinaryBudget > 0 {
			out = append(out, ev)
			ordinaryBudget--
		}
	}

	// More key moments than the ceiling: keep the newest.
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
