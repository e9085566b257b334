package model

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/feed"
)

// MapRaceSummaries maps a previous_race or next_race payload into one
// summary per tracked series. Records for untracked series are skipped; if
// a series appears twice the first record wins.
func MapRaceSummaries(kind feed.Kind, p feed.Payload) (map[Series]RaceSummary, error) {
	var dateKey string
	switch kind {
	case feed.PreviousRace:
		dateKey = "race_date"
	case feed.NextRace:
		dateKey = "scheduled_date"
	default:
		return nil, fmt.Errorf("model: %s is not a race summary feed", kind)
	}

	out := make(map[Series]RaceSummary, len(seriesInfo))
	for i, r := range p {
		name, ok := r["series_name"].(string)
		if !ok {
			return nil, &SchemaError{Feed: kind.String(), Index: i, Field: "series_name"}
		}
		series, tracked := SeriesByName(name)
		if !tracked {
			continue
		}
		if _, seen := out[series]; seen {
			continue
		}

		summary := RaceSummary{
			Series:            series,
			Name:              stringField(r, "name"),
			Track:             stringField(r, "track_name"),
			TrackType:         stringField(r, "track_type"),
			Date:              stringField(r, dateKey),
			ScheduledDistance: floatField(r, "scheduled_distance"),
			ScheduledLaps:     intField(r, "scheduled_laps"),
			CarsInField:       intField(r, "cars_in_field"),
			TVBroadcaster:     stringField(r, "television_broadcaster"),
			RadioBroadcaster:  stringField(r, "radio_broadcaster"),
			PlayoffRound:      stringField(r, "playoff_round"),
		}
		if kind == feed.PreviousRace {
			summary.Winner = stringField(r, "winner")
			summary.ActualDistance = floatField(r, "actual_distance")
			summary.ActualLaps = intField(r, "actual_laps")
		}
		out[series] = summary
	}
	return out, nil
}

// MapLiveRuns maps a live payload into runs, preserving payload order.
// A repeated id keeps its first record.
func MapLiveRuns(p feed.Payload) ([]LiveRun, error) {
	out := make([]LiveRun, 0, len(p))
	seen := make(map[string]bool, len(p))
	for i, r := range p {
		run, ok := MapLiveRun(r)
		if !ok {
			return nil, &SchemaError{Feed: feed.Live.String(), Index: i, Field: "id"}
		}
		if seen[run.ID] {
			continue
		}
		seen[run.ID] = true
		out = append(out, run)
	}
	return out, nil
}

// MapLiveRun maps one live record. It reports false when the record has no
// usable id.
func MapLiveRun(r feed.Record) (LiveRun, bool) {
	id, ok := idString(r["id"])
	if !ok {
		return LiveRun{}, false
	}

	run := LiveRun{
		ID:                id,
		Name:              stringField(r, "name"),
		Type:              stringField(r, "type"),
		StartTime:         stringField(r, "start_time"),
		EndTime:           stringField(r, "end_time"),
		TotalLaps:         intField(r, "total_laps"),
		ActualLaps:        intField(r, "actual_laps"),
		ScheduledLaps:     intField(r, "scheduled_laps"),
		ScheduledDistance: floatField(r, "scheduled_distance"),
		StageLaps:         intField(r, "stage_laps"),
		StageStart:        intField(r, "stage_start"),
		StageRemaining:    intField(r, "stage_remaining"),
		StageCompleted:    intField(r, "stage_completed"),
		StageEnd:          intField(r, "stage_end"),
		CurrentStage:      intField(r, "current_stage"),
		LapNumber:         intField(r, "lap_number"),
		LapsRemaining:     intField(r, "laps_remaining"),
		Track: Track{
			Name:      stringField(r, "track"),
			Timezone:  stringField(r, "track_tz"),
			Type:      stringField(r, "track_type"),
			Latitude:  floatField(r, "lat"),
			Longitude: floatField(r, "lng"),
			Length:    floatField(r, "track_length"),
		},
		Elapsed:        floatField(r, "elapsed_time"),
		PitStopDelta:   floatField(r, "pit_stop_delta"),
		ActualDistance: floatField(r, "actual_distance"),
		CautionCount:   cautionCount(r),
	}

	if code := intField(r, "flag"); code != nil {
		flag := FlagFromCode(*code)
		run.Flag = &flag
	}

	if seriesID := intField(r, "series"); seriesID != nil {
		name := fmt.Sprintf("Unknown (%d)", *seriesID)
		if series, ok := SeriesByID(*seriesID); ok {
			name = series.DisplayName()
		}
		run.Series = &name
	}

	return run, true
}

// cautionCount counts flag periods run under yellow. Nil when the record
// carries no flag period list.
func cautionCount(r feed.Record) *int64 {
	periods, ok := r["flag_periods"].([]any)
	if !ok {
		return nil
	}
	var n int64
	for _, p := range periods {
		obj, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if code := toInt(obj["flag"]); code != nil && *code == CautionFlagCode {
			n++
		}
	}
	return &n
}

// MapBackendInfo maps the config payload. It returns nil for an empty payload.
func MapBackendInfo(p feed.Payload) *BackendInfo {
	if len(p) == 0 {
		return nil
	}
	r := p[0]
	return &BackendInfo{
		Version:           stringField(r, "version"),
		Environment:       stringField(r, "environment"),
		Timezone:          stringField(r, "timezone"),
		WebsocketsEnabled: boolField(r, "websockets_enabled"),
	}
}

// MapWeather maps a weather object fetched at the given time.
func MapWeather(r feed.Record, fetchedAt time.Time) Weather {
	w := Weather{FetchedAt: fetchedAt}

	if current := objectField(r, "current"); current != nil {
		cur := feed.Record(current)
		w.Temperature = floatField(cur, "temp")
		w.Humidity = floatField(cur, "humidity")
		w.WindSpeed = floatField(cur, "wind_speed")
		w.WindDirection = floatField(cur, "wind_deg")
		if conditions, ok := cur["weather"].([]any); ok && len(conditions) > 0 {
			if first, ok := conditions[0].(map[string]any); ok {
				w.Conditions = stringField(feed.Record(first), "main")
			}
		}
	}

	if hourly, ok := r["hourly"].([]any); ok && len(hourly) > 0 {
		if first, ok := hourly[0].(map[string]any); ok {
			if pop := toFloat(first["pop"]); pop != nil {
				chance := int64(math.Round(*pop * 100))
				w.RainChance = &chance
			}
		}
	}

	return w
}

// MapVehicles maps a running-order list sorted by position. Entries
// without a running position are dropped.
func MapVehicles(records []feed.Record) []Vehicle {
	out := make([]Vehicle, 0, len(records))
	for _, r := range records {
		pos := intField(r, "running_position")
		if pos == nil {
			continue
		}
		out = append(out, Vehicle{
			Position:      *pos,
			DisplayName:   stringField(r, "display_name"),
			VehicleNumber: stringField(r, "vehicle_number"),
			TeamName:      stringField(r, "team_name"),
			Manufacturer:  stringField(r, "manufacturer"),
			Sponsor:       stringField(r, "sponsor"),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}
