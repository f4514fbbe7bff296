package timeline

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/medintel/medintel/internal/domain/prescription"
)

type AssembleInput struct {
	Date          time.Time
	Location      *time.Location
	Schedules     []*DosingEvent
	Medicines     []*prescription.Medicine
	Prescriptions []*prescription.Prescription
	// Statuses feed both the per-dose status and the completed and missed
	// counters, so callers pass exactly the statuses of Date.
	Statuses  []*DosingStatus
	Conflicts []Conflict
}

// Assemble builds the timeline of one calendar day. A day without doses is a
// valid, empty timeline.
func Assemble(in AssembleInput) *TimelineDay {
	loc := in.Location
	if loc == nil {
		loc = time.Local
	}
	y, m, d := in.Date.In(loc).Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	day := &TimelineDay{
		Date:  dayStart.Format(time.DateOnly),
		Slots: []ScheduleSlot{},
	}

	var events []*DosingEvent
	for _, ev := range in.Schedules {
		if !ev.IsActive || ev.ScheduledTime.Before(dayStart) || !ev.ScheduledTime.Before(dayEnd) {
			continue
		}
		events = append(events, ev)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ScheduledTime.Before(events[j].ScheduledTime)
	})
	day.TotalMedications = len(events)

	medicines := make(map[uuid.UUID]*prescription.Medicine, len(in.Medicines))
	for _, med := range in.Medicines {
		medicines[med.ID] = med
	}
	prescriptions := make(map[uuid.UUID]*prescription.Prescription, len(in.Prescriptions))
	for _, p := range in.Prescriptions {
		prescriptions[p.ID] = p
	}
	statuses := latestStatuses(in.Statuses)

	index := make(map[string]int)
	for _, ev := range events {
		med, p := medicines[ev.MedicineID], prescriptions[ev.PrescriptionID]
		if med == nil || p == nil {
			continue
		}
		key := SlotKey(ev.ScheduledTime, loc)
		i, ok := index[key]
		if !ok {
			i = len(day.Slots)
			index[key] = i
			day.Slots = append(day.Slots, ScheduleSlot{
				Key:         key,
				Time:        slotStart(ev.ScheduledTime, loc),
				Medications: []SlotMedication{},
				Conflicts:   []Conflict{},
			})
		}
		st := statuses[ev.ID]
		if st == nil {
			st = upcomingStatus(ev)
		}
		day.Slots[i].Medications = append(day.Slots[i].Medications, SlotMedication{
			Medicine:     med,
			Prescription: p,
			Schedule:     ev,
			Status:       st,
		})
	}

	for i := range day.Slots {
		slot := &day.Slots[i]
		for _, c := range in.Conflicts {
			for _, sm := range slot.Medications {
				if c.Involves(sm.Medicine.ID) {
					slot.Conflicts = append(slot.Conflicts, c)
					break
				}
			}
		}
	}

	sort.Slice(day.Slots, func(i, j int) bool { return day.Slots[i].Time.Before(day.Slots[j].Time) })

	for _, st := range in.Statuses {
		switch st.Status {
		case StatusTaken:
			day.CompletedMedications++
		case StatusMissed:
			day.MissedMedications++
		}
	}
	day.UpcomingMedications = day.TotalMedications - day.CompletedMedications - day.MissedMedications
	if day.UpcomingMedications < 0 {
		day.UpcomingMedications = 0
	}
	if day.TotalMedications > 0 {
		day.AdherenceRate = float64(day.CompletedMedications) / float64(day.TotalMedications)
	}
	return day
}

// latestStatuses keeps the most recently updated status per schedule.
func latestStatuses(statuses []*DosingStatus) map[uuid.UUID]*DosingStatus {
	out := make(map[uuid.UUID]*DosingStatus, len(statuses))
	for _, st := range statuses {
		if prev, ok := out[st.ScheduleID]; ok && prev.UpdatedAt.After(st.UpdatedAt) {
			continue
		}
		out[st.ScheduleID] = st
	}
	return out
}

// upcomingStatus stands in for a dose nobody has acted on. It is never
// stored and carries the nil id.
func upcomingStatus(ev *DosingEvent) *DosingStatus {
	return &DosingStatus{
		ScheduleID:     ev.ID,
		MedicineID:     ev.MedicineID,
		PrescriptionID: ev.PrescriptionID,
		UserID:         ev.UserID,
		ScheduledTime:  ev.ScheduledTime,
		Status:         StatusUpcoming,
	}
}
