package news

import (
	"sort"
	"time"
)

// Day is one daily digest: the items submitted on Date, best first.
type Day struct {
	Date  time.Time
	Items []*News
}

// GroupByDay buckets items by UTC submit day for the days closed days before
// now. Today is left out since it is still changing. Items inside a day are
// ranked by score, then by submit time. Returned items are copies.
func GroupByDay(items []*News, now time.Time, days int) []Day {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	oldest := today.AddDate(0, 0, -days)

	buckets := make(map[time.Time][]*News)
	for _, n := range items {
		if n.SubmitTime.IsZero() {
			continue
		}
		t := n.SubmitTime.UTC()
		if t.Before(oldest) || !t.Before(today) {
			continue
		}
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		c := *n
		buckets[day] = append(buckets[day], &c)
	}

	result := make([]Day, 0, len(buckets))
	for day, list := range buckets {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Score != list[j].Score {
				return list[i].Score > list[j].Score
			}
			return list[i].SubmitTime.Before(list[j].SubmitTime)
		})
		for i, n := range list {
			n.Rank = i
		}
		result = append(result, Day{Date: day, Items: list})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})
	return result
}

// AdoptPulled copies content already pulled for the same URL in pulled into
// list, so each article is fetched once per run.
func AdoptPulled(list, pulled []*News) {
	byURL := make(map[string]*News, len(pulled))
	for _, n := range pulled {
		if n.URL != "" && n.Pulled() {
			byURL[n.URL] = n
		}
	}
	for _, n := range list {
		src, ok := byURL[n.URL]
		if !ok || n.Pulled() {
			continue
		}
		n.Content = src.Content
		n.Summary = src.Summary
		n.SummarizedBy = src.SummarizedBy
		n.Image = src.Image
	}
}
