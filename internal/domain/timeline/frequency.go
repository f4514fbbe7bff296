package timeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Pattern classifies a free-text dosing frequency.
type Pattern string

const (
	PatternBID      Pattern = "BID"
	PatternTID      Pattern = "TID"
	PatternQID      Pattern = "QID"
	PatternQD       Pattern = "QD"
	PatternPRN      Pattern = "PRN"
	PatternInterval Pattern = "interval"
	PatternCustom   Pattern = "custom"
)

// Instruction is a side note found in frequency or timing text.
type Instruction string

const (
	InstructionWithFood     Instruction = "Take with food"
	InstructionEmptyStomach Instruction = "Take on empty stomach"
	InstructionBedtime      Instruction = "Take at bedtime"
	InstructionMorning      Instruction = "Take in morning"
)

// ClockTime is a time of day without a date.
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

type ParsedFrequency struct {
	Pattern       Pattern       `json:"pattern"`
	TimesPerDay   int           `json:"times_per_day"`
	IntervalHours int           `json:"interval_hours,omitempty"`
	ExplicitTimes []ClockTime   `json:"explicit_times,omitempty"`
	Note          string        `json:"note,omitempty"`
	Instructions  []Instruction `json:"instructions,omitempty"`
}

// Has reports whether the instruction was found.
func (p ParsedFrequency) Has(i Instruction) bool {
	return hasInstruction(p.Instructions, i)
}

func hasInstruction(list []Instruction, i Instruction) bool {
	for _, got := range list {
		if got == i {
			return true
		}
	}
	return false
}

// frequencyRule returns ok=false when the text does not match.
type frequencyRule func(text string) (ParsedFrequency, bool)

// frequencyRules are tried in order; the first match wins.
var frequencyRules = []frequencyRule{
	keywordRule(PatternBID, 2, "bid", "twice daily", "2x daily"),
	keywordRule(PatternTID, 3, "tid", "three times daily", "3x daily"),
	keywordRule(PatternQID, 4, "qid", "four times daily", "4x daily"),
	keywordRule(PatternQD, 1, "qd", "once daily", "daily", "1x daily"),
	keywordRule(PatternPRN, 0, "prn", "as needed", "when needed"),
	intervalRule,
	explicitTimesRule,
}

func keywordRule(p Pattern, timesPerDay int, keywords ...string) frequencyRule {
	return func(text string) (ParsedFrequency, bool) {
		if !containsAny(text, keywords...) {
			return ParsedFrequency{}, false
		}
		return ParsedFrequency{Pattern: p, TimesPerDay: timesPerDay}, true
	}
}

var intervalPattern = regexp.MustCompile(`(?:every|each)\s+(\d+)\s+(?:hour|hr)s?`)

// intervalRule matches "every N hours". Zero or unparseable N falls through.
func intervalRule(text string) (ParsedFrequency, bool) {
	m := intervalPattern.FindStringSubmatch(text)
	if m == nil {
		return ParsedFrequency{}, false
	}
	hours, err := strconv.Atoi(m[1])
	if err != nil || hours <= 0 {
		return ParsedFrequency{}, false
	}
	return ParsedFrequency{
		Pattern:       PatternInterval,
		TimesPerDay:   24 / hours,
		IntervalHours: hours,
	}, true
}

var clockPattern = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)

var dayParts = []struct {
	keywords []string
	at       ClockTime
}{
	{[]string{"morning"}, ClockTime{Hour: 8}},
	{[]string{"evening"}, ClockTime{Hour: 18}},
	{[]string{"bedtime", "night"}, ClockTime{Hour: 21}},
}

func explicitTimesRule(text string) (ParsedFrequency, bool) {
	times := clockTimes(text)
	for _, dp := range dayParts {
		if containsAny(text, dp.keywords...) {
			times = append(times, dp.at)
		}
	}
	if len(times) == 0 {
		return ParsedFrequency{}, false
	}
	return ParsedFrequency{
		Pattern:       PatternCustom,
		TimesPerDay:   len(times),
		ExplicitTimes: times,
	}, true
}

// clockTimes extracts 12-hour clock times such as "8 am" or "8:30 pm".
// Out-of-range readings are dropped.
func clockTimes(text string) []ClockTime {
	var out []ClockTime
	for _, m := range clockPattern.FindAllStringSubmatch(text, -1) {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			continue
		}
		switch {
		case m[3] == "pm" && hour != 12:
			hour += 12
		case m[3] == "am" && hour == 12:
			hour = 0
		}
		out = append(out, ClockTime{Hour: hour, Minute: minute})
	}
	return out
}

// Parse classifies free-text frequency. It never fails: text no rule
// recognises becomes a once-a-day custom pattern carrying the original text
// as its note.
func Parse(frequency string) ParsedFrequency {
	text := strings.ToLower(strings.TrimSpace(frequency))

	parsed := ParsedFrequency{Pattern: PatternCustom, TimesPerDay: 1, Note: frequency}
	for _, rule := range frequencyRules {
		if p, ok := rule(text); ok {
			parsed = p
			break
		}
	}
	parsed.Instructions = Instructions(text)
	return parsed
}

// Instructions extracts the food, empty-stomach, bedtime and morning notes.
func Instructions(text string) []Instruction {
	text = strings.ToLower(text)
	var out []Instruction
	if containsAny(text, "with food", "after meal") {
		out = append(out, InstructionWithFood)
	}
	if containsAny(text, "empty stomach", "before meal") {
		out = append(out, InstructionEmptyStomach)
	}
	if containsAny(text, "bedtime", "at night") {
		out = append(out, InstructionBedtime)
	}
	if strings.Contains(text, "morning") {
		out = append(out, InstructionMorning)
	}
	return out
}

// NextDose returns when the dose after lastTaken is due. Patterns without
// a fixed spacing report false.
func NextDose(frequency string, lastTaken time.Time) (time.Time, bool) {
	p := Parse(frequency)
	var gap time.Duration
	switch p.Pattern {
	case PatternBID:
		gap = 12 * time.Hour
	case PatternTID:
		gap = 8 * time.Hour
	case PatternQID:
		gap = 6 * time.Hour
	case PatternQD:
		gap = 24 * time.Hour
	case PatternInterval:
		gap = time.Duration(p.IntervalHours) * time.Hour
	default:
		return time.Time{}, false
	}
	return lastTaken.Add(gap), true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
