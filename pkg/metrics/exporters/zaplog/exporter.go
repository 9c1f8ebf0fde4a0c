// Copyright © 2018 One Concern

// Package zaplog exports opencensus views to a zap logger.
package zaplog

import (
	"go.opencensus.io/stats/view"
	"go.uber.org/zap"
)

var _ view.Exporter = &Exporter{}

// Exporter logs view data
type Exporter struct {
	l *zap.Logger
}

// NewExporter builds an exporter logging at info level to l
func NewExporter(l *zap.Logger) *Exporter {
	if l == nil {
		l = zap.NewNop()
	}
	return &Exporter{l: l.Named("metrics")}
}

// ExportView logs one entry per row of the view
func (e *Exporter) ExportView(data *view.Data) {
	for _, row := range data.Rows {
		fields := make([]zap.Field, 0, len(row.Tags)+2)
		fields = append(fields, zap.String("view", data.View.Name))
		for _, t := range row.Tags {
			fields = append(fields, zap.String(t.Key.Name(), t.Value))
		}
		switch agg := row.Data.(type) {
		case *view.CountData:
			fields = append(fields, zap.Int64("count", agg.Value))
		case *view.SumData:
			fields = append(fields, zap.Float64("sum", agg.Value))
		case *view.LastValueData:
			fields = append(fields, zap.Float64("last", agg.Value))
		case *view.DistributionData:
			fields = append(fields,
				zap.Int64("count", agg.Count),
				zap.Float64("mean", agg.Mean),
				zap.Float64("min", agg.Min),
				zap.Float64("max", agg.Max),
			)
		}
		e.l.Info("metrics", fields...)
	}
}
