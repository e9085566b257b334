package reconcile

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/model"
)

// topVehicles is how many running-order positions a live device exposes.
const topVehicles = 10

// LiveDeviceID returns the host device id of a live run.
//
// Device ids only allow lowercase letters, digits, '_' and '-', so the run id
// is escaped: lowercase letters and digits are kept, an uppercase letter
// becomes '_' plus its lowercase form and any other byte becomes '-' plus two
// hex digits. The mapping is reversible, so distinct runs never share a
// device. The raw run id is kept in Device.RunID.
//
// Examples:
//
//	LiveDeviceID("5012")   // "live_race_5012"
//	LiveDeviceID("R1")     // "live_race__r1"
//	LiveDeviceID("a_b.c")  // "live_race_a-5fb-2ec"
func LiveDeviceID(runID string) string {
	var b strings.Builder
	b.Grow(len(KindLiveRace) + 1 + 2*len(runID))
	b.WriteString(string(KindLiveRace))
	b.WriteByte('_')
	for i := 0; i < len(runID); i++ {
		c := runID[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte('_')
			b.WriteByte(c + ('a' - 'A'))
		default:
			fmt.Fprintf(&b, "-%02x", c)
		}
	}
	return b.String()
}

// RaceDeviceID returns the host device id of a fixed race device.
func RaceDeviceID(kind DeviceKind, s model.Series) string {
	return string(kind) + "_" + string(s)
}

// Plan computes the instructions that bring the host from the known live
// runs to the runs of snap.
//
// Order is removes, creates, live updates, fixed race device updates and
// finally the live_status update. Removes and creates are sorted by run id.
// A fixed race device is only updated when its state differs from prior,
// the last state applied for that device id; a missing prior entry always
// updates. The live_status update is emitted on every call.
func Plan(known []string, prior map[string]State, snap *model.Snapshot) []Instruction {
	newIDs := snap.LiveIDs()
	gone, added := lo.Difference(known, newIDs)
	kept := lo.Filter(newIDs, func(id string, _ int) bool { return lo.Contains(known, id) })
	sort.Strings(gone)
	sort.Strings(added)

	out := make([]Instruction, 0, len(gone)+len(newIDs)+2*len(model.AllSeries())+1)

	for _, id := range gone {
		out = append(out, Instruction{Action: ActionRemove, DeviceID: LiveDeviceID(id), RunID: id})
	}

	for _, id := range added {
		d := LiveDevice(snap, snap.Live[id])
		out = append(out, Instruction{Action: ActionCreate, DeviceID: d.ID, RunID: id, Device: &d, State: d.State})
	}

	for _, id := range kept {
		d := LiveDevice(snap, snap.Live[id])
		out = append(out, Instruction{Action: ActionUpdate, DeviceID: d.ID, RunID: id, Device: &d, State: d.State})
	}

	for _, d := range RaceDevices(snap) {
		if prev, ok := prior[d.ID]; ok && reflect.DeepEqual(prev, d.State) {
			continue
		}
		out = append(out, Instruction{Action: ActionUpdate, DeviceID: d.ID, Device: &d, State: d.State})
	}

	status := StatusDevice(snap)
	out = append(out, Instruction{
		Action:   ActionUpdate,
		DeviceID: status.ID,
		Device:   &status,
		State:    status.State,
	})

	return out
}

// RaceDevices returns the six fixed race devices with their state for snap,
// previous races first, each group in series order.
func RaceDevices(snap *model.Snapshot) []Device {
	groups := []struct {
		kind      DeviceKind
		model     string
		label     string
		races     map[model.Series]model.RaceSummary
		available bool
	}{
		{KindPreviousRace, ModelPreviousRace, "Previous Race", snap.Previous, snap.PreviousAvailable},
		{KindNextRace, ModelNextRace, "Next Race", snap.Next, snap.NextAvailable},
	}

	out := make([]Device, 0, 2*len(model.AllSeries()))
	for _, g := range groups {
		for _, s := range model.AllSeries() {
			var summary *model.RaceSummary
			if r, ok := g.races[s]; ok {
				summary = &r
			}
			out = append(out, Device{
				ID:        RaceDeviceID(g.kind, s),
				Kind:      g.kind,
				Name:      fmt.Sprintf("%s %s", s.DisplayName(), g.label),
				Model:     g.model,
				Series:    s,
				SWVersion: backendVersion(snap),
				State:     RaceState(summary, g.available),
			})
		}
	}
	return out
}

// LiveDevice returns the device for a live run.
func LiveDevice(snap *model.Snapshot, run model.LiveRun) Device {
	name := "Live Race " + run.ID
	if run.Name != nil && *run.Name != "" {
		name = *run.Name
	}
	return Device{
		ID:        LiveDeviceID(run.ID),
		Kind:      KindLiveRace,
		Name:      name,
		Model:     ModelLiveRace,
		RunID:     run.ID,
		SWVersion: backendVersion(snap),
		State:     LiveState(run),
	}
}

// StatusDevice returns the live_status device for snap.
func StatusDevice(snap *model.Snapshot) Device {
	return Device{
		ID:        LiveStatusID,
		Kind:      KindLiveStatus,
		Name:      "Galaxie Live Status",
		Model:     ModelLiveStatus,
		SWVersion: backendVersion(snap),
		State:     StatusState(snap),
	}
}

// RaceState is the entity state of a fixed race device. summary is nil when
// the series was missing from the last successful fetch.
func RaceState(summary *model.RaceSummary, available bool) State {
	st := State{"available": available}
	var r model.RaceSummary
	if summary != nil {
		r = *summary
	}
	st["name"] = val(r.Name)
	st["track"] = val(r.Track)
	st["track_type"] = val(r.TrackType)
	st["date"] = val(r.Date)
	st["scheduled_distance"] = val(r.ScheduledDistance)
	st["scheduled_laps"] = val(r.ScheduledLaps)
	st["cars_in_field"] = val(r.CarsInField)
	st["tv_broadcaster"] = val(r.TVBroadcaster)
	st["radio_broadcaster"] = val(r.RadioBroadcaster)
	st["playoff_round"] = val(r.PlayoffRound)
	st["winner"] = val(r.Winner)
	st["actual_distance"] = val(r.ActualDistance)
	st["actual_laps"] = val(r.ActualLaps)
	return st
}

// LiveState is the entity state of a live run device.
func LiveState(run model.LiveRun) State {
	st := State{
		"available":          true,
		"name":               val(run.Name),
		"type":               val(run.Type),
		"start_time":         val(run.StartTime),
		"end_time":           val(run.EndTime),
		"total_laps":         val(run.TotalLaps),
		"actual_laps":        val(run.ActualLaps),
		"scheduled_laps":     val(run.ScheduledLaps),
		"scheduled_distance": val(run.ScheduledDistance),
		"stage_laps":         val(run.StageLaps),
		"stage_start":        val(run.StageStart),
		"stage_remaining":    val(run.StageRemaining),
		"stage_completed":    val(run.StageCompleted),
		"stage_end":          val(run.StageEnd),
		"current_stage":      val(run.CurrentStage),
		"lap_number":         val(run.LapNumber),
		"laps_remaining":     val(run.LapsRemaining),
		"track":              val(run.Track.Name),
		"track_timezone":     val(run.Track.Timezone),
		"track_type":         val(run.Track.Type),
		"track_length":       val(run.Track.Length),
		"latitude":           val(run.Track.Latitude),
		"longitude":          val(run.Track.Longitude),
		"elapsed_seconds":    val(run.Elapsed),
		"series":             val(run.Series),
		"pit_stop_delta":     val(run.PitStopDelta),
		"actual_distance":    val(run.ActualDistance),
		"caution_count":      val(run.CautionCount),
		"flag":               nil,
		"flag_code":          nil,
	}
	if run.Flag != nil {
		st["flag"] = run.Flag.Label
		st["flag_code"] = run.Flag.Code
	}

	for i := 0; i < topVehicles; i++ {
		key := fmt.Sprintf("position_%d", i+1)
		st[key] = nil
		if i < len(run.Vehicles) {
			st[key] = vehicleLabel(run.Vehicles[i])
		}
	}

	var w model.Weather
	if run.Weather != nil {
		w = *run.Weather
	}
	st["temperature"] = val(w.Temperature)
	st["humidity"] = val(w.Humidity)
	st["wind_speed"] = val(w.WindSpeed)
	st["wind_direction"] = val(w.WindDirection)
	st["rain_chance"] = val(w.RainChance)
	st["conditions"] = val(w.Conditions)

	return st
}

// StatusState is the entity state of the live_status device. Until the live
// feed has succeeded once, live_race_status and live_runs are unknown and
// available is false; backend_version is unknown until the backend config
// feed has succeeded.
func StatusState(snap *model.Snapshot) State {
	st := State{
		"available":        snap.LiveAvailable,
		"live_race_status": nil,
		"live_runs":        nil,
		"backend_version":  nil,
	}
	if snap.LiveAvailable {
		st["live_race_status"] = len(snap.Live) > 0
		st["live_runs"] = len(snap.Live)
	}
	if v := backendVersion(snap); v != "" && snap.BackendAvailable {
		st["backend_version"] = v
	}
	return st
}

func vehicleLabel(v model.Vehicle) string {
	name := "Unknown"
	if v.DisplayName != nil {
		name = *v.DisplayName
	}
	if v.VehicleNumber != nil {
		return fmt.Sprintf("#%s %s", *v.VehicleNumber, name)
	}
	return name
}

func backendVersion(snap *model.Snapshot) string {
	if snap.Backend == nil || snap.Backend.Version == nil {
		return ""
	}
	return *snap.Backend.Version
}

// val dereferences an optional value, returning untyped nil when unknown.
func val[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
