// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRecordMethodsIncrementCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPut()
	c.RecordReserve()
	c.RecordDelete(3.5)
	c.RecordBury()
	c.RecordKick()
	c.RecordTouch()

	require.Equal(t, float64(1), counterValue(t, c.jobsPut))
	require.Equal(t, float64(1), counterValue(t, c.jobsReserved))
	require.Equal(t, float64(1), counterValue(t, c.jobsDeleted))
	require.Equal(t, float64(1), counterValue(t, c.jobsBuried))
	require.Equal(t, float64(1), counterValue(t, c.jobsKicked))
	require.Equal(t, float64(1), counterValue(t, c.jobsTouched))
}

func TestUpdateGaugesOverwritesValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.UpdateGauges(Gauges{CurrentConnections: 4, CurrentTubes: 2})

	var m dto.Metric
	require.NoError(t, c.currentConns.Write(&m))
	require.Equal(t, float64(4), m.GetGauge().GetValue())
}
