package coordinator

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/feed"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/model"
)

const (
	outcomeOK     = "ok"
	outcomeSchema = "schema"
	weatherFeed   = "weather"

	// maxWeatherFetches bounds concurrent weather requests per fast cycle.
	maxWeatherFetches = 8
)

// slowCycle refreshes the previous and next race feeds concurrently and
// the backend config when it is due.
func (c *Coordinator) slowCycle(ctx context.Context) {
	backendDue := c.lastBackend.IsZero() || c.now().Sub(c.lastBackend) >= c.backendInterval
	var backendOK bool

	var g errgroup.Group
	for _, kind := range []feed.Kind{feed.PreviousRace, feed.NextRace} {
		g.Go(func() error {
			c.fetchInto(ctx, kind, func(p feed.Payload) error {
				_, err := model.MapRaceSummaries(kind, p)
				return err
			})
			return nil
		})
	}
	if backendDue {
		g.Go(func() error {
			backendOK = c.fetchInto(ctx, feed.BackendConfig, nil)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // fetch goroutines never return errors

	if backendOK {
		c.lastBackend = c.now()
	}
	if ctx.Err() != nil {
		return
	}

	prev, prevOK := c.summaries(feed.PreviousRace)
	next, nextOK := c.summaries(feed.NextRace)
	var backend *model.BackendInfo
	backendEntry, backendStored := c.store.Get(feed.BackendConfig)
	if backendStored {
		backend = model.MapBackendInfo(backendEntry.Payload)
	}

	c.update(func(s *model.Snapshot) bool {
		if prevOK {
			s.Previous = prev
			s.PreviousAvailable = true
		}
		if nextOK {
			s.Next = next
			s.NextAvailable = true
		}
		if backendStored {
			s.Backend = backend
			s.BackendAvailable = true
		}
		return true
	})
}

// summaries maps the stored payload of a race summary feed.
func (c *Coordinator) summaries(kind feed.Kind) (map[model.Series]model.RaceSummary, bool) {
	entry, ok := c.store.Get(kind)
	if !ok {
		return nil, false
	}
	out, err := model.MapRaceSummaries(kind, entry.Payload)
	if err != nil {
		return nil, false
	}
	return out, true
}

// fastCycle refreshes the live feed, weather and push stream.
func (c *Coordinator) fastCycle(ctx context.Context) {
	fetched := c.fetchInto(ctx, feed.Live, func(p feed.Payload) error {
		_, err := model.MapLiveRuns(p)
		return err
	})
	if ctx.Err() != nil {
		return
	}

	var records []feed.Record
	entry, liveOK := c.store.Get(feed.Live)
	if liveOK {
		records = entry.Payload
	}

	runs, index := indexRuns(records)
	c.refreshWeather(ctx, runs)
	if ctx.Err() != nil {
		return
	}

	c.overlayMu.Lock()
	c.polled = index
	if fetched {
		for _, o := range c.overlay {
			o.detail = nil
		}
	}
	live := make(map[string]model.LiveRun, len(runs))
	for _, run := range runs {
		if o := c.overlay[run.ID]; o != nil {
			run = o.apply(index[run.ID], run)
		}
		if w, ok := c.weather[run.ID]; ok {
			run.Weather = &w
		}
		live[run.ID] = run
	}
	c.overlayMu.Unlock()

	c.update(func(s *model.Snapshot) bool {
		if !liveOK {
			return false
		}
		s.Live = live
		s.LiveAvailable = true
		return true
	})

	c.manageStream(runs)

	if c.metrics != nil {
		c.metrics.RecordLiveRuns(len(live))
	}
}

// indexRuns maps live records in payload order. A repeated id keeps its
// first record.
func indexRuns(records []feed.Record) ([]model.LiveRun, map[string]feed.Record) {
	runs := make([]model.LiveRun, 0, len(records))
	index := make(map[string]feed.Record, len(records))
	for _, r := range records {
		run, ok := model.MapLiveRun(r)
		if !ok {
			continue
		}
		if _, seen := index[run.ID]; seen {
			continue
		}
		index[run.ID] = r
		runs = append(runs, run)
	}
	return runs, index
}

// refreshWeather fetches weather for runs not attempted within the weather
// interval and forgets runs that are no longer live. Fetches run
// concurrently, at most maxWeatherFetches at a time.
func (c *Coordinator) refreshWeather(ctx context.Context, runs []model.LiveRun) {
	current := make(map[string]bool, len(runs))
	for _, run := range runs {
		current[run.ID] = true
	}
	for id := range c.weatherAttempt {
		if !current[id] {
			delete(c.weatherAttempt, id)
			delete(c.weather, id)
		}
	}

	var due []string
	for _, run := range runs {
		if last, ok := c.weatherAttempt[run.ID]; ok && c.now().Sub(last) < c.weatherInterval {
			continue
		}
		c.weatherAttempt[run.ID] = c.now()
		due = append(due, run.ID)
	}
	if len(due) == 0 {
		return
	}

	fetched := make([]*model.Weather, len(due))
	var g errgroup.Group
	g.SetLimit(maxWeatherFetches)
	for i, id := range due {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			start := c.now()
			rec, err := c.fetcher.FetchWeather(ctx, id)
			c.observe(weatherFeed, err, start)
			if err != nil {
				c.logger.Debug("weather fetch failed", "run_id", id, "error", err)
				return nil
			}
			w := model.MapWeather(rec, start.UTC())
			fetched[i] = &w
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // fetch goroutines never return errors

	for i, id := range due {
		if fetched[i] != nil {
			c.weather[id] = *fetched[i]
		}
	}
}

// fetchInto fetches kind and, when validate accepts the payload, stores it.
// It reports whether the store was updated. Failures keep the stale entry.
func (c *Coordinator) fetchInto(ctx context.Context, kind feed.Kind, validate func(feed.Payload) error) bool {
	start := c.now()
	p, err := c.fetcher.Fetch(ctx, kind)
	if err == nil && validate != nil {
		err = validate(p)
	}
	c.observe(kind.String(), err, start)

	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.logger.Warn("feed fetch failed, keeping last payload",
			"feed", kind.String(),
			"outcome", outcome(err),
			"error", err,
		)
		return false
	}

	if err := c.store.Put(kind, p); err != nil {
		c.logger.Error("storing payload failed", "feed", kind.String(), "error", err)
		return false
	}
	c.logger.Debug("feed fetched", "feed", kind.String(), "records", len(p))
	return true
}

func (c *Coordinator) observe(name string, err error, start time.Time) {
	d := c.now().Sub(start)
	o := outcome(err)
	c.recordStats(name, o, err, start, d)
	if c.metrics != nil {
		c.metrics.RecordFetch(name, o, d)
	}
}

func outcome(err error) string {
	var schemaErr *model.SchemaError
	if errors.As(err, &schemaErr) {
		return outcomeSchema
	}
	return feed.Outcome(err)
}
