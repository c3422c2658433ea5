package storage

import (
	"testing"
	"time"

	"github.com/michaelbrown/parley/internal/llm"
)

func sessionWith(topic string, created time.Time, contents ...string) *Session {
	s := &Session{ID: "test", Topic: topic, Status: StatusActive, CreatedAt: created}
	s.Messages = append(s.Messages, llm.UserMessage(topic))
	for _, c := range contents {
		s.Messages = append(s.Messages, llm.ModelMessage("alpha", llm.StagePropose, c))
	}
	return s
}

func TestQueryKeywordCaseInsensitive(t *testing.T) {
	now := time.Now()
	s := sessionWith("Climate policy tradeoffs", now, "carbon taxes are blunt instruments")

	cases := []struct {
		keyword string
		want    bool
	}{
		{"climate", true},       // topic, different case
		{"CARBON", true},        // message content, different case
		{"axes are blunt", true}, // substring, not whole word
		{"nuclear", false},
		{"", true}, // absent keyword matches everything
	}

	for _, tc := range cases {
		q := Query{Keyword: tc.keyword}
		if got := q.Matches(s); got != tc.want {
			t.Errorf("Matches(keyword=%q) = %v, want %v", tc.keyword, got, tc.want)
		}
	}
}

func TestQueryDateRangeInclusive(t *testing.T) {
	created := time.Date(2025, 6, 15, 23, 45, 0, 0, time.UTC)
	s := sessionWith("topic", created)

	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	cases := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"inside range", day(2025, 6, 1), day(2025, 6, 30), true},
		{"start boundary", day(2025, 6, 15), day(2025, 6, 30), true},
		{"end boundary", day(2025, 6, 1), day(2025, 6, 15), true},
		{"same day both bounds", day(2025, 6, 15), day(2025, 6, 15), true},
		{"before range", day(2025, 6, 16), day(2025, 6, 30), false},
		{"after range", day(2025, 6, 1), day(2025, 6, 14), false},
		{"open start", time.Time{}, day(2025, 6, 15), true},
		{"open end", day(2025, 6, 15), time.Time{}, true},
		{"no bounds", time.Time{}, time.Time{}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := Query{Start: tc.start, End: tc.end}
			if got := q.Matches(s); got != tc.want {
				t.Errorf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestQueryCombinesKeywordAndDates(t *testing.T) {
	created := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s := sessionWith("climate", created)

	match := Query{Keyword: "climate", Start: created.AddDate(0, 0, -1), End: created.AddDate(0, 0, 1)}
	if !match.Matches(s) {
		t.Error("keyword and date both match, expected true")
	}

	wrongDate := Query{Keyword: "climate", Start: created.AddDate(0, 1, 0), End: created.AddDate(0, 2, 0)}
	if wrongDate.Matches(s) {
		t.Error("date outside range, expected false even with matching keyword")
	}
}

func TestNewSessionID(t *testing.T) {
	id := NewSessionID(time.Date(2025, 8, 31, 9, 30, 15, 0, time.UTC))
	if id != "20250831-093015" {
		t.Errorf("id = %q, want 20250831-093015", id)
	}
}

func TestSummarize(t *testing.T) {
	s := sessionWith("topic", time.Now(), "one", "two")
	sum := Summarize(s)
	if sum.MessageCount != 3 {
		t.Errorf("message count = %d, want 3", sum.MessageCount)
	}
	if sum.ID != s.ID || sum.Topic != s.Topic || sum.Status != s.Status {
		t.Error("summary fields should mirror the session")
	}
}
