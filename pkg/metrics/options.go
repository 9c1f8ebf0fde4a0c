// Copyright © 2018 One Concern

package metrics

import (
	"go.opencensus.io/stats/view"
)

// Option tunes the registration of the repository views
type Option func(*settings)

// WithExporter sends the aggregated views to some collector when Flush is called.
// Without an exporter, views are only available with view.RetrieveData.
func WithExporter(exporter view.Exporter) Option {
	return func(s *settings) {
		if exporter != nil {
			s.exporter = exporter
		}
	}
}
