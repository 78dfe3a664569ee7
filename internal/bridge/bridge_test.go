package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SentiNet/internal/model"
)

// testGateway builds a gateway with no NATS connection and no sender loop,
// so enqueue behavior can be observed directly.
func testGateway(limit int) *Gateway {
	return &Gateway{
		prefix: "sentinet",
		limit:  limit,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func TestEnqueueDropsOldestWhenFull(t *testing.T) {
	g := testGateway(3)

	for i := 0; i < 5; i++ {
		g.enqueue("sentinet.stats", "stats_update", map[string]int{"seq": i})
	}

	depth, dropped := g.QueueDepth()
	assert.Equal(t, 3, depth)
	assert.Equal(t, uint64(2), dropped)

	// The survivors are the newest three.
	var env envelope
	var data map[string]int
	require.NoError(t, json.Unmarshal(g.queue[0].payload, &env))
	raw, _ := json.Marshal(env.Data)
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Equal(t, 2, data["seq"])
}

func TestEnvelopeShape(t *testing.T) {
	g := testGateway(16)

	g.PublishAlert(model.Alert{Attacker: "aa", Target: "bb", AttackType: "DDoS"})

	depth, _ := g.QueueDepth()
	require.Equal(t, 1, depth)
	assert.Equal(t, "sentinet.alerts", g.queue[0].subject)

	var env envelope
	require.NoError(t, json.Unmarshal(g.queue[0].payload, &env))
	assert.Equal(t, "security_alert", env.Type)
	assert.NotZero(t, env.Timestamp)
}

func TestPublishSubjects(t *testing.T) {
	g := testGateway(16)

	g.PublishTopology(map[string]string{"hello": "world"})
	g.PublishStats("s1", []model.FlowRecord{{SwitchID: "s1"}})
	g.PublishAlert(model.Alert{})

	require.Len(t, g.queue, 3)
	assert.Equal(t, "sentinet.topology", g.queue[0].subject)
	assert.Equal(t, "sentinet.stats", g.queue[1].subject)
	assert.Equal(t, "sentinet.alerts", g.queue[2].subject)
}

func TestCapturePollOrder(t *testing.T) {
	c := NewCapture()

	_, ok := c.PollPendingCommand()
	assert.False(t, ok)

	c.QueueCommand(model.PendingCommand{Command: "block", Target: "h1"})
	c.QueueCommand(model.PendingCommand{Command: "block", Target: "h2"})

	cmd, ok := c.PollPendingCommand()
	require.True(t, ok)
	assert.Equal(t, "h1", cmd.Target)

	cmd, ok = c.PollPendingCommand()
	require.True(t, ok)
	assert.Equal(t, "h2", cmd.Target)

	_, ok = c.PollPendingCommand()
	assert.False(t, ok)
}
