// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"kitero.dev/kitero/internal/kitrouter"
)

func TestCollector_ObserveSetsGauges(t *testing.T) {
	c, reg := NewCollector()

	c.Observe(map[string]kitrouter.InterfaceStats{
		"eth1": {Clients: 2, Up: 4200, Down: 700},
	})

	gathered, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, gathered)

	up := testutil.ToFloat64(c.interfaceBytes.WithLabelValues("eth1", "up"))
	require.Equal(t, float64(4200), up)

	down := testutil.ToFloat64(c.interfaceBytes.WithLabelValues("eth1", "down"))
	require.Equal(t, float64(700), down)

	clients := testutil.ToFloat64(c.interfaceClients.WithLabelValues("eth1"))
	require.Equal(t, float64(2), clients)
}

func TestCollector_ObserveOverwritesPreviousValue(t *testing.T) {
	c, _ := NewCollector()

	c.Observe(map[string]kitrouter.InterfaceStats{"eth1": {Clients: 1, Up: 10}})
	c.Observe(map[string]kitrouter.InterfaceStats{"eth1": {Clients: 3, Up: 20}})

	require.Equal(t, float64(20), testutil.ToFloat64(c.interfaceBytes.WithLabelValues("eth1", "up")))
	require.Equal(t, float64(3), testutil.ToFloat64(c.interfaceClients.WithLabelValues("eth1")))
}
