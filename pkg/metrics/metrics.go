// Copyright © 2018 One Concern

// Package metrics records the activity of a repository with opencensus.
//
// Measures are recorded at any time, but are only aggregated after Init has registered the views.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/docker/go-units"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

const (
	// KB stands for kilo bytes (1024 bytes)
	KB = units.KiB

	// MB stands for mega bytes (1024 kilo bytes)
	MB = units.MiB

	// TagOperation is the tag key for the repository operation (add, pull, register...)
	TagOperation = "operation"

	// TagStack is the tag key for the stack affected by an operation
	TagStack = "stack"

	// TagOutcome is the tag key for the outcome of an operation (ok, failed, partial)
	TagOutcome = "outcome"
)

var (
	// Ingested counts the distributions added to the repository
	Ingested = stats.Int64("darkpan/distributions/ingested", "number of distributions added", stats.UnitDimensionless)

	// IngestedBytes measures the size of the ingested archives
	IngestedBytes = stats.Int64("darkpan/distributions/bytes", "size of ingested archives", stats.UnitBytes)

	// PartialIngests counts the distributions recorded in metadata whose archive could not be placed
	PartialIngests = stats.Int64("darkpan/distributions/partial", "number of partial ingestions", stats.UnitDimensionless)

	// Stacks counts the created stacks
	Stacks = stats.Int64("darkpan/stacks/created", "number of stacks created", stats.UnitDimensionless)

	// Registrations counts the packages pinned onto stacks
	Registrations = stats.Int64("darkpan/stacks/registrations", "number of registered packages", stats.UnitDimensionless)

	// Fetches counts the downloads from upstream repositories
	Fetches = stats.Int64("darkpan/fetch/count", "number of downloads", stats.UnitDimensionless)

	// Timing measures the latency of repository operations
	Timing = stats.Float64("darkpan/operations/timing", "response time of repository operations", stats.UnitMilliseconds)
)

var (
	mp       *settings
	initOnce sync.Once
)

type settings struct {
	exporter view.Exporter
	views    []*view.View
}

func tagKeys(keys ...string) []tag.Key {
	res := make([]tag.Key, 0, len(keys))
	for _, k := range keys {
		res = append(res, tag.MustNewKey(k))
	}
	return res
}

func durationDistribution() *view.Aggregation {
	// buckets in milliseconds
	return view.Distribution(
		10, 50,
		100, 300, 500,
		1000, 2000, 5000,
		10000, 30000, 60000,
		300000,
	)
}

func bytesDistribution() *view.Aggregation {
	return view.Distribution(
		10*KB, 50*KB, 100*KB, 500*KB,
		1*MB, 5*MB, 10*MB, 50*MB,
	)
}

// Views aggregating the repository measures
func Views() []*view.View {
	return []*view.View{
		{Name: Ingested.Name(), Description: Ingested.Description() + " [count]", Measure: Ingested, Aggregation: view.Count(), TagKeys: tagKeys(TagOperation)},
		{Name: IngestedBytes.Name(), Description: IngestedBytes.Description() + " [distribution]", Measure: IngestedBytes, Aggregation: bytesDistribution()},
		{Name: PartialIngests.Name(), Description: PartialIngests.Description() + " [count]", Measure: PartialIngests, Aggregation: view.Count(), TagKeys: tagKeys(TagOperation)},
		{Name: Stacks.Name(), Description: Stacks.Description() + " [count]", Measure: Stacks, Aggregation: view.Count()},
		{Name: Registrations.Name(), Description: Registrations.Description() + " [cumulated]", Measure: Registrations, Aggregation: view.Sum(), TagKeys: tagKeys(TagStack)},
		{Name: Fetches.Name(), Description: Fetches.Description() + " [count]", Measure: Fetches, Aggregation: view.Count(), TagKeys: tagKeys(TagOutcome)},
		{Name: Timing.Name(), Description: Timing.Description() + " [distribution]", Measure: Timing, Aggregation: durationDistribution(), TagKeys: tagKeys(TagOperation, TagOutcome)},
	}
}

// Init registers the views and the exporter.
//
// Init may be called multiple times: only the first time matters.
func Init(opts ...Option) error {
	var err error
	initOnce.Do(func() {
		s := &settings{}
		for _, apply := range opts {
			apply(s)
		}
		s.views = Views()
		if err = view.Register(s.views...); err != nil {
			return
		}
		mp = s
	})
	return err
}

// Flush exports the current data of all views
func Flush() {
	if mp == nil || mp.exporter == nil {
		return
	}
	now := time.Now()
	for _, v := range mp.views {
		rows, err := view.RetrieveData(v.Name)
		if err != nil {
			continue // ignore errors when pushing metrics
		}
		mp.exporter.ExportView(&view.Data{
			View:  v,
			Start: now,
			End:   now,
			Rows:  rows,
		})
	}
}

// Inc increments a counter-like metric
func Inc(counter *stats.Int64Measure, tags ...map[string]string) {
	_ = stats.RecordWithTags(context.Background(), mergeTags(tags), counter.M(1))
}

// Int64 sets a value to a measurement
func Int64(measure *stats.Int64Measure, value int64, tags ...map[string]string) {
	_ = stats.RecordWithTags(context.Background(), mergeTags(tags), measure.M(value))
}

// Since feeds a millisecs timing measurement from some start time
func Since(start time.Time, measure *stats.Float64Measure, tags ...map[string]string) {
	ms := float64(time.Since(start).Nanoseconds()) / 1e6
	_ = stats.RecordWithTags(context.Background(), mergeTags(tags), measure.M(ms))
}

// Outcome of an operation, as a tag value
func Outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}

// mergeTags adds some dynamically defined tags to a single measurement
func mergeTags(extras []map[string]string) []tag.Mutator {
	mutators := make([]tag.Mutator, 0, 4)
	for _, extra := range extras {
		for k, v := range extra {
			mutators = append(mutators, tag.Upsert(tag.MustNewKey(k), v))
		}
	}
	return mutators
}
