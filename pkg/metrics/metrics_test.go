// Copyright © 2018 One Concern

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/oneconcern/darkpan/pkg/metrics/exporters/zaplog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMetrics(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, Init(WithExporter(zaplog.NewExporter(zap.New(core)))))
	require.NoError(t, Init(), "only the first initialization matters")

	Inc(Ingested, map[string]string{TagOperation: "add"})
	Inc(Ingested, map[string]string{TagOperation: "pull"})
	Int64(IngestedBytes, 2048)
	Int64(Registrations, 3, map[string]string{TagStack: "dev"})
	Since(time.Now().Add(-time.Second), Timing, map[string]string{TagOperation: "add", TagOutcome: Outcome(nil)})

	rows, err := view.RetrieveData(Ingested.Name())
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	Flush()
	assert.NotZero(t, logs.FilterMessage("metrics").Len())
	assert.NotZero(t, logs.FilterField(zap.String(TagOperation, "pull")).Len())
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "failed", Outcome(errors.New("boom")))
}
