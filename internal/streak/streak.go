// Package streak computes reading streaks from per-day activity buckets.
//
// All day arithmetic goes through time.Date so calendar days stay correct
// across DST transitions. A day is "active" when its bucket count is positive.
package streak

import (
	"slices"
	"time"
)

// DefaultRecentSize is the number of most recent active days reported.
const DefaultRecentSize = 30

// Bucket is the activity count of one calendar day.
type Bucket struct {
	Date  time.Time `json:"date"` // midnight in the engine's location
	Count int64     `json:"count"`
}

// Summary is the result of a streak calculation.
type Summary struct {
	CurrentStreak  int      `json:"current_streak"`
	LongestStreak  int      `json:"longest_streak"`
	RecentActivity []Bucket `json:"recent_activity"`
}

// Day is one cell of a dense activity calendar.
type Day struct {
	Date      time.Time `json:"date"`
	Count     int64     `json:"count"`
	Active    bool      `json:"active"`
	Intensity int       `json:"intensity"` // 0 = none, 4 = busiest day in the window
}

// Calculator computes streak summaries. The zero value uses DefaultRecentSize.
type Calculator struct {
	RecentSize int
}

// Calculate is Calculator{}.Calculate.
func Calculate(buckets []Bucket, now time.Time) Summary {
	return Calculator{}.Calculate(buckets, now)
}

// Calculate returns the current and longest streaks and the most recent
// active days. The input slice is not modified.
func (c Calculator) Calculate(buckets []Bucket, now time.Time) Summary {
	days := Normalize(buckets, now.Location())

	recent := c.RecentSize
	if recent <= 0 {
		recent = DefaultRecentSize
	}

	return Summary{
		CurrentStreak:  currentStreak(days, now),
		LongestStreak:  longestStreak(days),
		RecentActivity: slices.Clone(days[:min(recent, len(days))]),
	}
}

// CurrentStreak counts consecutive active days ending today or yesterday.
// A streak whose latest day is older than yesterday is broken and counts 0.
func CurrentStreak(buckets []Bucket, now time.Time) int {
	return currentStreak(Normalize(buckets, now.Location()), now)
}

// LongestStreak returns the longest run of consecutive active days anywhere
// in the buckets, independent of today.
func LongestStreak(buckets []Bucket, loc *time.Location) int {
	return longestStreak(Normalize(buckets, loc))
}

// Normalize returns a new slice of active days in loc, most recent first,
// with duplicate dates merged by summing their counts.
func Normalize(buckets []Bucket, loc *time.Location) []Bucket {
	merged := make(map[time.Time]int64, len(buckets))
	for _, b := range buckets {
		if b.Count <= 0 {
			continue
		}
		merged[Midnight(b.Date, loc)] += b.Count
	}

	days := make([]Bucket, 0, len(merged))
	for date, count := range merged {
		days = append(days, Bucket{Date: date, Count: count})
	}
	slices.SortFunc(days, func(a, b Bucket) int {
		return b.Date.Compare(a.Date)
	})
	return days
}

// Midnight returns the start of t's calendar day in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func currentStreak(days []Bucket, now time.Time) int {
	if len(days) == 0 {
		return 0
	}
	today := Midnight(now, now.Location())
	yesterday := today.AddDate(0, 0, -1)
	if !days[0].Date.Equal(today) && !days[0].Date.Equal(yesterday) {
		return 0
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		if !isDayBefore(days[i].Date, days[i-1].Date) {
			break
		}
		streak++
	}
	return streak
}

func longestStreak(days []Bucket) int {
	if len(days) == 0 {
		return 0
	}
	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if isDayBefore(days[i].Date, days[i-1].Date) {
			run++
			longest = max(longest, run)
		} else {
			run = 1
		}
	}
	return longest
}

// isDayBefore reports whether a is exactly one calendar day before b.
func isDayBefore(a, b time.Time) bool {
	y, m, d := b.Date()
	return time.Date(y, m, d-1, 0, 0, 0, 0, b.Location()).Equal(a)
}

// Calendar returns a dense, oldest-first window of the last days calendar
// days ending today. Intensity scales each day's count against the busiest
// day in the window.
func Calendar(buckets []Bucket, now time.Time, days int) []Day {
	if days <= 0 {
		return nil
	}
	loc := now.Location()
	byDate := make(map[time.Time]int64, len(buckets))
	for _, b := range Normalize(buckets, loc) {
		byDate[b.Date] = b.Count
	}

	today := Midnight(now, loc)
	calendar := make([]Day, 0, days)
	var peak int64
	for i := days - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i)
		count := byDate[date]
		peak = max(peak, count)
		calendar = append(calendar, Day{Date: date, Count: count, Active: count > 0})
	}
	for i := range calendar {
		calendar[i].Intensity = intensity(calendar[i].Count, peak)
	}
	return calendar
}

func intensity(count, peak int64) int {
	if count <= 0 || peak <= 0 {
		return 0
	}
	return min(int(float64(count)/float64(peak)*3)+1, 4)
}
