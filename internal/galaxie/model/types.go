package model

import (
	"sort"
	"time"
)

// RaceSummary describes the previous or next race of one series.
// Every attribute except Series is optional.
type RaceSummary struct {
	Series            Series   `json:"series"`
	Name              *string  `json:"name"`
	Track             *string  `json:"track"`
	TrackType         *string  `json:"track_type"`
	Date              *string  `json:"date"`
	ScheduledDistance *float64 `json:"scheduled_distance"`
	ScheduledLaps     *int64   `json:"scheduled_laps"`
	CarsInField       *int64   `json:"cars_in_field"`
	TVBroadcaster     *string  `json:"tv_broadcaster"`
	RadioBroadcaster  *string  `json:"radio_broadcaster"`
	PlayoffRound      *string  `json:"playoff_round"`

	// Completed races only.
	Winner         *string  `json:"winner,omitempty"`
	ActualDistance *float64 `json:"actual_distance,omitempty"`
	ActualLaps     *int64   `json:"actual_laps,omitempty"`
}

// Track is the venue of a live run.
type Track struct {
	Name      *string  `json:"name"`
	Timezone  *string  `json:"timezone"`
	Type      *string  `json:"type"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Length    *float64 `json:"length"`
}

// LiveRun is one in-progress session (practice, qualifying or race).
type LiveRun struct {
	ID                string   `json:"id"`
	Name              *string  `json:"name"`
	Type              *string  `json:"type"`
	StartTime         *string  `json:"start_time"`
	EndTime           *string  `json:"end_time"`
	TotalLaps         *int64   `json:"total_laps"`
	ActualLaps        *int64   `json:"actual_laps"`
	ScheduledLaps     *int64   `json:"scheduled_laps"`
	ScheduledDistance *float64 `json:"scheduled_distance"`
	StageLaps         *int64   `json:"stage_laps"`
	StageStart        *int64   `json:"stage_start"`
	StageRemaining    *int64   `json:"stage_remaining"`
	StageCompleted    *int64   `json:"stage_completed"`
	StageEnd          *int64   `json:"stage_end"`
	CurrentStage      *int64   `json:"current_stage"`
	LapNumber         *int64   `json:"lap_number"`
	LapsRemaining     *int64   `json:"laps_remaining"`
	Flag              *Flag    `json:"flag"`
	Track             Track    `json:"track"`
	Elapsed           *float64 `json:"elapsed_seconds"`
	Series            *string  `json:"series"`
	PitStopDelta      *float64 `json:"pit_stop_delta"`
	ActualDistance    *float64 `json:"actual_distance"`
	CautionCount      *int64   `json:"caution_count"`

	// Vehicles is the running order from the push stream, by position.
	Vehicles []Vehicle `json:"vehicles,omitempty"`
	Weather  *Weather  `json:"weather,omitempty"`
}

// Vehicle is one entry of the running order.
type Vehicle struct {
	Position      int64   `json:"position"`
	DisplayName   *string `json:"display_name"`
	VehicleNumber *string `json:"vehicle_number"`
	TeamName      *string `json:"team_name"`
	Manufacturer  *string `json:"manufacturer"`
	Sponsor       *string `json:"sponsor"`
}

// Weather is the track weather for a live run.
type Weather struct {
	Temperature   *float64  `json:"temperature"`
	Humidity      *float64  `json:"humidity"`
	WindSpeed     *float64  `json:"wind_speed"`
	WindDirection *float64  `json:"wind_direction"`
	RainChance    *int64    `json:"rain_chance"`
	Conditions    *string   `json:"conditions"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// BackendInfo is the upstream backend's self-description.
type BackendInfo struct {
	Version           *string `json:"version"`
	Environment       *string `json:"environment"`
	Timezone          *string `json:"timezone"`
	WebsocketsEnabled *bool   `json:"websockets_enabled"`
}

// StreamingEnabled reports whether the backend advertises the push stream.
func (b *BackendInfo) StreamingEnabled() bool {
	return b != nil && b.WebsocketsEnabled != nil && *b.WebsocketsEnabled
}

// Snapshot is the merged, read-only view of every feed.
//
// A published Snapshot is never modified; writers build a new one with
// Clone. Live holds exactly the runs of the latest successful live fetch.
type Snapshot struct {
	Seq       uint64                 `json:"seq"`
	Previous  map[Series]RaceSummary `json:"previous"`
	Next      map[Series]RaceSummary `json:"next"`
	Live      map[string]LiveRun     `json:"live"`
	Backend   *BackendInfo           `json:"backend"`
	UpdatedAt time.Time              `json:"updated_at"`

	// Availability is true once the feed has succeeded at least once.
	PreviousAvailable bool `json:"previous_available"`
	NextAvailable     bool `json:"next_available"`
	LiveAvailable     bool `json:"live_available"`
	BackendAvailable  bool `json:"backend_available"`
}

// NewSnapshot returns an empty snapshot with no feed available.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Previous: map[Series]RaceSummary{},
		Next:     map[Series]RaceSummary{},
		Live:     map[string]LiveRun{},
	}
}

// Clone returns a copy whose maps can be replaced or modified without
// affecting s. Values inside the maps are shared and must be treated as
// immutable.
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	out.Previous = cloneMap(s.Previous)
	out.Next = cloneMap(s.Next)
	out.Live = cloneMap(s.Live)
	return &out
}

// LiveIDs returns the live run ids in sorted order.
func (s *Snapshot) LiveIDs() []string {
	ids := make([]string, 0, len(s.Live))
	for id := range s.Live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
