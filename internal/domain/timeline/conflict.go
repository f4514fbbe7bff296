package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medintel/medintel/internal/domain/prescription"
)

// conflictNamespace seeds the name-based conflict ids.
var conflictNamespace = uuid.MustParse("6f1c2a84-3b57-4d0e-9a51-2e8c7d4b90f3")

const (
	resolutionSpacing      = "Consider spacing these medications by at least 2 hours"
	resolutionConsultNow   = "Consult your doctor immediately to resolve this conflict"
	resolutionInteractions = "Consult your doctor before taking these medications together"
)

// SlotKey buckets t into its half-hour window, "HH:00" or "HH:30", in loc.
func SlotKey(t time.Time, loc *time.Location) string {
	lt := t.In(loc)
	return fmt.Sprintf("%02d:%02d", lt.Hour(), lt.Minute()/30*30)
}

// slotStart is the first instant of t's half-hour window.
func slotStart(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), lt.Minute()/30*30, 0, 0, loc)
}

// Detector derives conflicts from a user's current schedules and medicines.
// It keeps no state between calls.
type Detector struct {
	interactions []Interaction
	loc          *time.Location
}

func NewDetector(interactions []Interaction, loc *time.Location) *Detector {
	if loc == nil {
		loc = time.Local
	}
	return &Detector{interactions: interactions, loc: loc}
}

// Detect returns every timing and interaction conflict. Each conflict type is
// reported at most once per medicine pair, and the output is sorted so that
// equal input yields equal output in any order.
func (d *Detector) Detect(userID string, events []*DosingEvent, medicines []*prescription.Medicine) []Conflict {
	byID := make(map[uuid.UUID]*prescription.Medicine, len(medicines))
	for _, m := range medicines {
		byID[m.ID] = m
	}

	found := make(map[string]Conflict)
	add := func(c Conflict) {
		key := string(c.Type) + "|" + c.MedicineID1.String() + "|" + c.MedicineID2.String()
		if prev, ok := found[key]; ok && prev.Severity.Rank() >= c.Severity.Rank() {
			return
		}
		c.UserID = userID
		c.ID = uuid.NewSHA1(conflictNamespace, []byte(userID+"|"+key))
		found[key] = c
	}

	for _, bucket := range d.buckets(events) {
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				a, b := byID[bucket[i].MedicineID], byID[bucket[j].MedicineID]
				if a == nil || b == nil || a.ID == b.ID {
					continue
				}
				if c, ok := timingConflict(a, b); ok {
					add(c)
				}
			}
		}
	}

	for _, in := range d.interactions {
		if c, ok := interactionConflict(in, medicines); ok {
			add(c)
		}
	}

	out := make([]Conflict, 0, len(found))
	for _, c := range found {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.MedicineID1 != b.MedicineID1 {
			return a.MedicineID1.String() < b.MedicineID1.String()
		}
		return a.MedicineID2.String() < b.MedicineID2.String()
	})
	return out
}

// buckets groups events sharing a calendar day and half-hour window.
func (d *Detector) buckets(events []*DosingEvent) [][]*DosingEvent {
	groups := make(map[string][]*DosingEvent)
	for _, ev := range events {
		key := ev.ScheduledTime.In(d.loc).Format(time.DateOnly) + " " + SlotKey(ev.ScheduledTime, d.loc)
		groups[key] = append(groups[key], ev)
	}
	out := make([][]*DosingEvent, 0, len(groups))
	for _, g := range groups {
		if len(g) > 1 {
			out = append(out, g)
		}
	}
	return out
}

// ordered returns the pair with the lower id first.
func ordered(a, b *prescription.Medicine) (*prescription.Medicine, *prescription.Medicine) {
	if b.ID.String() < a.ID.String() {
		return b, a
	}
	return a, b
}

func timingConflict(a, b *prescription.Medicine) (Conflict, bool) {
	a, b = ordered(a, b)
	if foodClash(a, b) {
		return Conflict{
			MedicineID1:         a.ID,
			MedicineID2:         b.ID,
			Type:                ConflictTiming,
			Severity:            SeverityModerate,
			Description:         fmt.Sprintf("Food requirement conflict: %s and %s have conflicting food requirements", a.Name, b.Name),
			SuggestedResolution: strPtr(resolutionSpacing),
		}, true
	}
	if a.IsCritical() || b.IsCritical() {
		return Conflict{
			MedicineID1:         a.ID,
			MedicineID2:         b.ID,
			Type:                ConflictTiming,
			Severity:            SeveritySevere,
			Description:         fmt.Sprintf("Critical medication timing conflict: %s and %s are scheduled at the same time", a.Name, b.Name),
			SuggestedResolution: strPtr(resolutionConsultNow),
		}, true
	}
	return Conflict{}, false
}

func foodClash(a, b *prescription.Medicine) bool {
	ia, ib := timingNotes(a), timingNotes(b)
	return (hasInstruction(ia, InstructionWithFood) && hasInstruction(ib, InstructionEmptyStomach)) ||
		(hasInstruction(ib, InstructionWithFood) && hasInstruction(ia, InstructionEmptyStomach))
}

func timingNotes(m *prescription.Medicine) []Instruction {
	if m.TimingInstructions == nil {
		return nil
	}
	return Instructions(*m.TimingInstructions)
}

// interactionConflict pairs the first medicine matching one drug with the
// first distinct medicine matching the other, by id order.
func interactionConflict(in Interaction, medicines []*prescription.Medicine) (Conflict, bool) {
	if len(in.Drugs) != 2 {
		return Conflict{}, false
	}
	sorted := make([]*prescription.Medicine, len(medicines))
	copy(sorted, medicines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID.String() < sorted[j].ID.String() })

	for _, a := range sorted {
		if !matchesDrug(a, in.Drugs[0]) {
			continue
		}
		for _, b := range sorted {
			if a.ID == b.ID || !matchesDrug(b, in.Drugs[1]) {
				continue
			}
			first, second := ordered(a, b)
			return Conflict{
				MedicineID1:         first.ID,
				MedicineID2:         second.ID,
				Type:                ConflictInteraction,
				Severity:            in.Severity,
				Description:         in.Description,
				SuggestedResolution: strPtr(resolutionInteractions),
			}, true
		}
	}
	return Conflict{}, false
}

func matchesDrug(m *prescription.Medicine, drug string) bool {
	drug = strings.ToLower(drug)
	if strings.Contains(strings.ToLower(m.Name), drug) {
		return true
	}
	return m.GenericName != nil && strings.Contains(strings.ToLower(*m.GenericName), drug)
}

func strPtr(s string) *string {
	return &s
}
