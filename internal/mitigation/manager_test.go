package mitigation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SentiNet/internal/model"
	"SentiNet/internal/registry"
)

type fakeDatapath struct {
	rules []model.FlowRule
}

func (f *fakeDatapath) InstallFlow(rule model.FlowRule) error {
	f.rules = append(f.rules, rule)
	return nil
}

func (f *fakeDatapath) SendPacketOut(inPort, outPort uint32, data []byte) error { return nil }
func (f *fakeDatapath) RequestFlowStats() error                                 { return nil }

// fakeScheduler collects scheduled tasks so tests can fire them on demand.
type fakeScheduler struct {
	tasks []scheduledTask
}

type scheduledTask struct {
	delay     time.Duration
	fn        func()
	cancelled bool
}

func (s *fakeScheduler) schedule(d time.Duration, f func()) CancelFunc {
	idx := len(s.tasks)
	s.tasks = append(s.tasks, scheduledTask{delay: d, fn: f})
	return func() bool {
		if s.tasks[idx].cancelled {
			return false
		}
		s.tasks[idx].cancelled = true
		return true
	}
}

// fire runs every pending task as if its timer had elapsed.
func (s *fakeScheduler) fire() {
	for i := range s.tasks {
		if !s.tasks[i].cancelled {
			s.tasks[i].cancelled = true
			s.tasks[i].fn()
		}
	}
}

func newTestManager(t *testing.T, dps ...*fakeDatapath) (*Manager, *fakeScheduler) {
	t.Helper()
	reg := registry.New()
	for i, dp := range dps {
		require.NoError(t, reg.HandleConnect("s"+string(rune('1'+i)), uint64(i+1), dp))
		dp.rules = nil // discard the table-miss rule
	}
	m := NewManager(reg)
	sched := &fakeScheduler{}
	m.SetScheduler(sched.schedule)
	return m, sched
}

func TestBlockInstallsDropRuleEverywhere(t *testing.T) {
	dp1, dp2 := &fakeDatapath{}, &fakeDatapath{}
	m, _ := newTestManager(t, dp1, dp2)

	m.Block("aa", "bb", 60*time.Second)

	for _, dp := range []*fakeDatapath{dp1, dp2} {
		require.Len(t, dp.rules, 1)
		rule := dp.rules[0]
		assert.Equal(t, 100, rule.Priority)
		assert.Empty(t, rule.Actions, "drop rules have no actions")
		assert.Equal(t, 60, rule.HardTimeout)
		assert.Equal(t, "aa", rule.Match.SrcMAC)
		assert.Equal(t, "bb", rule.Match.DstMAC)
	}
	assert.True(t, m.IsBlocked("aa", "bb"))
	assert.False(t, m.IsBlocked("bb", "aa"))
}

func TestBlockExpires(t *testing.T) {
	m, sched := newTestManager(t, &fakeDatapath{})

	m.Block("aa", "bb", 60*time.Second)
	require.True(t, m.IsBlocked("aa", "bb"))
	require.Len(t, sched.tasks, 1)
	assert.Equal(t, 60*time.Second, sched.tasks[0].delay)

	sched.fire()
	assert.False(t, m.IsBlocked("aa", "bb"))
	assert.Empty(t, m.BlockedFlows())
}

func TestReblockRefreshesExpiry(t *testing.T) {
	m, sched := newTestManager(t, &fakeDatapath{})

	m.Block("aa", "bb", 60*time.Second)
	m.Block("aa", "bb", 60*time.Second)

	// The first timer was cancelled; only the second can fire.
	require.Len(t, sched.tasks, 2)
	assert.True(t, sched.tasks[0].cancelled)
	assert.False(t, sched.tasks[1].cancelled)
	assert.True(t, m.IsBlocked("aa", "bb"))
	assert.Len(t, m.BlockedFlows(), 1)
}

func TestUnblockIdempotent(t *testing.T) {
	m, _ := newTestManager(t, &fakeDatapath{})

	m.Unblock("aa", "bb") // not blocked, no-op

	m.Block("aa", "bb", time.Minute)
	m.Unblock("aa", "bb")
	m.Unblock("aa", "bb")
	assert.False(t, m.IsBlocked("aa", "bb"))
}

func TestWildcardDestinationBlocksAllFlows(t *testing.T) {
	m, _ := newTestManager(t, &fakeDatapath{})

	m.Block("aa", "", time.Minute)

	assert.True(t, m.IsBlocked("aa", "bb"))
	assert.True(t, m.IsBlocked("aa", "cc"))
	assert.False(t, m.IsBlocked("bb", "aa"))
}

func TestBlockedFlowsSnapshot(t *testing.T) {
	m, _ := newTestManager(t, &fakeDatapath{})

	m.Block("aa", "bb", time.Minute)
	m.Block("cc", "dd", time.Minute)

	flows := m.BlockedFlows()
	require.Len(t, flows, 2)
	for _, f := range flows {
		assert.True(t, f.Expiry.After(time.Now()))
	}
}
