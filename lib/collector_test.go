package lib

import (
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	srv, err := Init(Attr{Server: true, SQDepth: 2, RQDepth: 2})
	require.NoError(t, err)
	defer srv.Destroy()

	cli, err := Init(Attr{SQDepth: 2, RQDepth: 2})
	require.NoError(t, err)
	defer cli.Destroy()

	require.NoError(t, srv.PostRecv(NewData(8), 1, nil, nil, nil, nil))
	require.NoError(t, srv.PostRecv(NewData(8), 1, nil, nil, nil, nil))

	c := NewCollector(srv, cli)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	// 2 trans x 2 directions x 5 series
	require.Equal(t, 20, testutil.CollectAndCount(c))
	require.Equal(t, 4, testutil.CollectAndCount(c, "shmtrans_slots_in_use"))

	expected := `
# HELP shmtrans_slots_in_use Number of slots currently holding a posted request.
# TYPE shmtrans_slots_in_use gauge
shmtrans_slots_in_use{dir="recv",role="server",trans="` + idLabel(srv) + `"} 2
shmtrans_slots_in_use{dir="send",role="server",trans="` + idLabel(srv) + `"} 0
`
	c.Remove(cli)
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "shmtrans_slots_in_use"))

	require.Equal(t, 10, testutil.CollectAndCount(c))

	c.Add(nil)
	c.Remove(nil)
	require.Equal(t, 10, testutil.CollectAndCount(c))
}

func idLabel(tr *Trans) string { return strconv.FormatUint(tr.ID(), 10) }
