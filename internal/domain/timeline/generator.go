package timeline

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medintel/medintel/internal/domain/prescription"
)

// MaxScheduleDays bounds how many days one generation may cover.
const MaxScheduleDays = 366

const defaultFrequency = "once a day"

type GenerateInput struct {
	Medicine     *prescription.Medicine
	Prescription *prescription.Prescription
	UserID       string
	// StartDate and EndDate are optional; only their calendar day in
	// Location is used.
	StartDate *time.Time
	EndDate   *time.Time
	Now       time.Time
	Location  *time.Location
}

// GenerateResult holds the events and every fallback taken to produce them.
type GenerateResult struct {
	Events   []*DosingEvent
	Warnings []string
}

func (r *GenerateResult) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// doseSlot is one time of day with an optional meal tag.
type doseSlot struct {
	hour int
	meal MealTiming
}

type doseTable struct {
	once, twice, three, four []doseSlot
}

var applicationDoses = doseTable{
	once:  []doseSlot{{hour: 8}},
	twice: []doseSlot{{hour: 8}, {hour: 20}},
	three: []doseSlot{{hour: 8}, {hour: 14}, {hour: 20}},
	four:  []doseSlot{{hour: 8}, {hour: 12}, {hour: 16}, {hour: 20}},
}

var oralDoses = doseTable{
	once:  []doseSlot{{8, MealBreakfast}},
	twice: []doseSlot{{8, MealBreakfast}, {20, MealDinner}},
	three: []doseSlot{{8, MealBreakfast}, {13, MealLunch}, {20, MealDinner}},
	four:  []doseSlot{{8, MealBreakfast}, {12, MealLunch}, {16, MealEvening}, {20, MealDinner}},
}

// slotsFor picks times of day by keyword. It does not consult Parse because
// placement differs by route. ok is false when no keyword matched.
func (t doseTable) slotsFor(freq string) ([]doseSlot, bool) {
	switch {
	case strings.Contains(freq, "once"):
		return t.once, true
	case containsAny(freq, "twice", "2"):
		return t.twice, true
	case containsAny(freq, "three", "3"):
		return t.three, true
	case containsAny(freq, "four", "4"):
		return t.four, true
	}
	return t.once, false
}

var applicationNamePattern = regexp.MustCompile(`(?i)eye|skin|drop|ointment|apply|nasal|topical|cream|gel|spray`)

// IsApplication reports whether a medicine is applied rather than swallowed:
// any non-oral route, or a name that suggests a topical product.
func IsApplication(m *prescription.Medicine) bool {
	if m.AdministrationRoute != "" && m.AdministrationRoute != prescription.RouteOral {
		return true
	}
	return applicationNamePattern.MatchString(m.Name)
}

var firstInteger = regexp.MustCompile(`\d+`)

// Generate computes the dosing events of one medicine. It never fails;
// ambiguous input resolves to documented defaults, each recorded as a
// warning. An empty result is valid.
func Generate(in GenerateInput) GenerateResult {
	var res GenerateResult
	m, p := in.Medicine, in.Prescription
	loc := in.Location
	if loc == nil {
		loc = time.Local
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	if Parse(m.Frequency).Pattern == PatternPRN {
		res.warn("medicine %s (%s) is taken as needed, no fixed schedule generated", m.Name, m.ID)
		return res
	}

	start := resolveStart(in, now, loc, &res)
	startDay := calendarDay(start, loc)

	numDays := durationDays(m, &res)
	if numDays > MaxScheduleDays {
		res.warn("duration %q of medicine %s exceeds %d days, capped", m.Duration, m.Name, MaxScheduleDays)
		numDays = MaxScheduleDays
	}

	endDay := startDay.AddDate(0, 0, numDays-1)
	if in.EndDate != nil && !in.EndDate.IsZero() {
		endDay = calendarDay(*in.EndDate, loc)
		if endDay.Before(startDay) {
			res.warn("end date %s is before start date %s for medicine %s, no schedule generated",
				endDay.Format(time.DateOnly), startDay.Format(time.DateOnly), m.Name)
			return res
		}
	}

	freq := strings.ToLower(strings.TrimSpace(m.Frequency))
	if freq == "" {
		freq = defaultFrequency
		res.warn("no frequency for medicine %s, defaulting to %q", m.Name, defaultFrequency)
	}

	application := IsApplication(m)
	table := oralDoses
	if application {
		table = applicationDoses
	}
	slots, ok := table.slotsFor(freq)
	if !ok {
		res.warn("unrecognised frequency %q for medicine %s, defaulting to once a day", m.Frequency, m.Name)
	}

	frequency := m.Frequency
	if frequency == "" {
		frequency = freq
	}
	end := endDay
	for day := 0; day < numDays; day++ {
		date := startDay.AddDate(0, 0, day)
		if date.After(endDay) {
			break
		}
		for _, s := range slots {
			ev := &DosingEvent{
				ID:             uuid.New(),
				MedicineID:     m.ID,
				PrescriptionID: p.ID,
				UserID:         in.UserID,
				ScheduledTime:  time.Date(date.Year(), date.Month(), date.Day(), s.hour, 0, 0, 0, loc),
				Frequency:      frequency,
				StartDate:      startDay,
				EndDate:        &end,
				IsActive:       true,
				CreatedAt:      now,
			}
			if !application && s.meal != "" {
				meal := s.meal
				ev.MealTiming = &meal
			}
			res.Events = append(res.Events, ev)
		}
	}

	if len(res.Events) == 0 {
		res.warn("no schedules generated for medicine %s in prescription %s", m.Name, p.ID)
	}
	return res
}

// resolveStart falls back from the caller's date to the consultation date,
// then the prescription's creation time, then now. The consultation date is a
// calendar date whose fields are read as written, so a DATE scanned as
// midnight UTC keeps its day in loc.
func resolveStart(in GenerateInput, now time.Time, loc *time.Location, res *GenerateResult) time.Time {
	if in.StartDate != nil && !in.StartDate.IsZero() {
		return *in.StartDate
	}
	p := in.Prescription
	if p.ConsultationDate != nil && !p.ConsultationDate.IsZero() {
		res.warn("no start date given, using consultation date of prescription %s", p.ID)
		d := *p.ConsultationDate
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	}
	if !p.CreatedAt.IsZero() {
		res.warn("no start date or consultation date, using creation date of prescription %s", p.ID)
		return p.CreatedAt
	}
	res.warn("no valid consultation date or creation date for prescription %s, using today as start date", p.ID)
	return now
}

// durationDays reads the first integer of the duration text. "2 weeks"
// therefore yields 2.
func durationDays(m *prescription.Medicine, res *GenerateResult) int {
	if s := firstInteger.FindString(m.Duration); s != "" {
		n, err := strconv.Atoi(s)
		if errors.Is(err, strconv.ErrRange) {
			return MaxScheduleDays + 1
		}
		if err == nil && n >= 1 {
			return n
		}
	}
	res.warn("no valid duration for medicine %s, defaulting to 1 day", m.Name)
	return 1
}

// calendarDay returns t's calendar day in loc as midnight UTC.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, mo, d := t.In(loc).Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
