package coordinator

import (
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/feed"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/model"
)

// overlay holds push-stream data for one run. detail accumulates run_detail
// fields since the last successful live poll.
type overlay struct {
	detail   feed.Record
	vehicles []model.Vehicle
}

// apply merges the overlay onto the polled record of a run.
func (o *overlay) apply(polled feed.Record, run model.LiveRun) model.LiveRun {
	if len(o.detail) > 0 && polled != nil {
		if merged, ok := model.MapLiveRun(mergeRecord(polled, o.detail)); ok {
			run = merged
		}
	}
	if o.vehicles != nil {
		run.Vehicles = o.vehicles
	}
	return run
}

// mergeRecord returns base with the fields of top laid over it. The id of
// base is kept.
func mergeRecord(base, top feed.Record) feed.Record {
	out := base.Clone()
	for k, v := range top {
		if k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}

// manageStream follows the first live run when streaming is enabled and
// advertised by the backend, and stops the stream otherwise.
func (c *Coordinator) manageStream(runs []model.LiveRun) {
	if c.streamer == nil {
		return
	}

	target := ""
	if c.streamEnabled && c.snap.Load().Backend.StreamingEnabled() && len(runs) > 0 {
		target = runs[0].ID
	}
	if target == c.following {
		return
	}

	if target == "" {
		c.streamer.Stop()
		c.logger.Info("live stream idle")
	} else {
		c.streamer.Follow(target)
	}
	c.following = target

	c.overlayMu.Lock()
	for id := range c.overlay {
		if id != target {
			delete(c.overlay, id)
		}
	}
	c.overlayMu.Unlock()
}

// applyRunDetail lays a run_detail message over the run's polled record
// and swaps the result into the snapshot. Runs absent from the latest live
// poll are ignored.
func (c *Coordinator) applyRunDetail(runID string, detail feed.Record) {
	if c.stopping.Load() {
		return
	}

	c.overlayMu.Lock()
	polled, ok := c.polled[runID]
	if !ok {
		c.overlayMu.Unlock()
		return
	}
	o := c.overlayFor(runID)
	if o.detail == nil {
		o.detail = feed.Record{}
	}
	for k, v := range detail {
		o.detail[k] = v
	}
	merged, ok := model.MapLiveRun(mergeRecord(polled, o.detail))
	c.overlayMu.Unlock()
	if !ok {
		return
	}

	next := c.update(func(s *model.Snapshot) bool {
		cur, present := s.Live[runID]
		if !present {
			return false
		}
		run := merged
		run.Vehicles = cur.Vehicles
		run.Weather = cur.Weather
		s.Live[runID] = run
		return true
	})
	if next != nil {
		c.publish()
	}
}

// applyVehicles sets the running order of a live run.
func (c *Coordinator) applyVehicles(runID string, vehicles []model.Vehicle) {
	if c.stopping.Load() {
		return
	}

	c.overlayMu.Lock()
	if _, ok := c.polled[runID]; !ok {
		c.overlayMu.Unlock()
		return
	}
	c.overlayFor(runID).vehicles = vehicles
	c.overlayMu.Unlock()

	next := c.update(func(s *model.Snapshot) bool {
		cur, present := s.Live[runID]
		if !present {
			return false
		}
		cur.Vehicles = vehicles
		s.Live[runID] = cur
		return true
	})
	if next != nil {
		c.publish()
	}
}

func (c *Coordinator) streamState(runID string, connected bool) {
	if connected {
		c.logger.Info("live stream up", "run_id", runID)
		return
	}
	c.logger.Info("live stream down", "run_id", runID)
}

// overlayFor returns the overlay of runID, creating it. Caller holds overlayMu.
func (c *Coordinator) overlayFor(runID string) *overlay {
	o, ok := c.overlay[runID]
	if !ok {
		o = &overlay{}
		c.overlay[runID] = o
	}
	return o
}
