package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SentiNet/internal/model"
)

// fakeDatapath records installed rules; failInstall makes InstallFlow error.
type fakeDatapath struct {
	rules       []model.FlowRule
	failInstall bool
}

func (f *fakeDatapath) InstallFlow(rule model.FlowRule) error {
	if f.failInstall {
		return errors.New("switch rejected flow mod")
	}
	f.rules = append(f.rules, rule)
	return nil
}

func (f *fakeDatapath) SendPacketOut(inPort, outPort uint32, data []byte) error { return nil }
func (f *fakeDatapath) RequestFlowStats() error                                 { return nil }

func TestHandleConnectInstallsTableMiss(t *testing.T) {
	r := New()
	dp := &fakeDatapath{}

	require.NoError(t, r.HandleConnect("s1", 1, dp))

	require.Len(t, dp.rules, 1)
	miss := dp.rules[0]
	assert.Equal(t, 0, miss.Priority)
	assert.Equal(t, []uint32{model.PortController}, miss.Actions)
	assert.Equal(t, 1, r.ActiveCount())
}

func TestHandleConnectFailurePropagates(t *testing.T) {
	r := New()
	dp := &fakeDatapath{failInstall: true}

	err := r.HandleConnect("s1", 1, dp)
	assert.ErrorContains(t, err, "table-miss")
	assert.Equal(t, 0, r.ActiveCount())
}

func TestLearnAndLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.HandleConnect("s1", 1, &fakeDatapath{}))

	r.LearnSource("s1", "00:00:00:00:00:01", 3)

	port, ok := r.LookupPort("s1", "00:00:00:00:00:01")
	require.True(t, ok)
	assert.Equal(t, uint32(3), port)

	_, ok = r.LookupPort("s1", "00:00:00:00:00:02")
	assert.False(t, ok)

	// Last writer wins, as in any flat L2 learning table.
	r.LearnSource("s1", "00:00:00:00:00:01", 7)
	port, _ = r.LookupPort("s1", "00:00:00:00:00:01")
	assert.Equal(t, uint32(7), port)
}

func TestLearnIgnoredWhenNotActive(t *testing.T) {
	r := New()
	r.LearnSource("s1", "00:00:00:00:00:01", 3)
	_, ok := r.LookupPort("s1", "00:00:00:00:00:01")
	assert.False(t, ok)
}

func TestDisconnectPurgesMACTable(t *testing.T) {
	r := New()
	require.NoError(t, r.HandleConnect("s1", 1, &fakeDatapath{}))
	r.LearnSource("s1", "00:00:00:00:00:01", 3)

	r.HandleDisconnect("s1")

	assert.Equal(t, 0, r.ActiveCount())
	_, ok := r.LookupPort("s1", "00:00:00:00:00:01")
	assert.False(t, ok)
	_, ok = r.Datapath("s1")
	assert.False(t, ok)
}

func TestReconnectStartsClean(t *testing.T) {
	r := New()
	require.NoError(t, r.HandleConnect("s1", 1, &fakeDatapath{}))
	r.LearnSource("s1", "00:00:00:00:00:01", 3)
	r.HandleDisconnect("s1")

	dp2 := &fakeDatapath{}
	require.NoError(t, r.HandleConnect("s1", 1, dp2))

	_, ok := r.LookupPort("s1", "00:00:00:00:00:01")
	assert.False(t, ok, "MAC table must not survive a reconnect")
	got, ok := r.Datapath("s1")
	require.True(t, ok)
	assert.Same(t, dp2, got.(*fakeDatapath))
}

func TestActiveDatapathsSnapshot(t *testing.T) {
	r := New()
	require.NoError(t, r.HandleConnect("s1", 1, &fakeDatapath{}))
	require.NoError(t, r.HandleConnect("s2", 2, &fakeDatapath{}))
	r.HandleDisconnect("s2")

	dps := r.ActiveDatapaths()
	assert.Len(t, dps, 1)
	_, ok := dps["s1"]
	assert.True(t, ok)
}

func TestSnapshot(t *testing.T) {
	r := New()
	require.NoError(t, r.HandleConnect("s1", 1, &fakeDatapath{}))
	r.LearnSource("s1", "00:00:00:00:00:01", 3)

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "s1", snap[0].ID)
	assert.Equal(t, "active", snap[0].State)
	assert.Equal(t, uint32(3), snap[0].MACTable["00:00:00:00:00:01"])

	// Mutating the snapshot must not leak into the registry.
	snap[0].MACTable["00:00:00:00:00:02"] = 9
	_, ok := r.LookupPort("s1", "00:00:00:00:00:02")
	assert.False(t, ok)
}
