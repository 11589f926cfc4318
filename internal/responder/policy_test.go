// ABOUTME: Tests for the keyword dispatch policy and stub responder
// ABOUTME: Covers priority order, random fallback reachability, latency, and cancellation

package responder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mediflow/internal/diagram"
	"github.com/2389/mediflow/internal/session"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want Topic
	}{
		{"what causes heart failure", TopicCardio},
		{"How do I perform a CARDIOvascular examination?", TopicCardio},
		{"renal failure workup", TopicHeartFailure},
		{"Type 1 vs Type 2 Diabetes", TopicDiabetes},
		{"explain the glasgow scale", TopicNeuro},
		{"patient in a coma", TopicNeuro},
		{"shortness of breath", TopicRespiratory},
		{"lung sounds", TopicRespiratory},
		{"diabetes and lung disease", TopicDiabetes},
		{"tell me about the liver", TopicNone},
		{"", TopicNone},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestTopics_AllHaveCannedReplies(t *testing.T) {
	for _, topic := range Topics() {
		reply, ok := CannedReply(topic)
		require.True(t, ok, "topic %s", topic)
		assert.NotEmpty(t, reply.Text)
	}
	_, ok := CannedReply(TopicNone)
	assert.False(t, ok)
}

func TestCannedReply_Attachments(t *testing.T) {
	cardio, _ := CannedReply(TopicCardio)
	assert.Equal(t, diagram.SampleFlowchart, cardio.Diagram)
	assert.NotEmpty(t, cardio.ImageURL)

	hf, _ := CannedReply(TopicHeartFailure)
	assert.Equal(t, diagram.SampleFlowchart, hf.Diagram)
	assert.Empty(t, hf.ImageURL)

	dm, _ := CannedReply(TopicDiabetes)
	assert.Empty(t, dm.Diagram)
	assert.NotEmpty(t, dm.ImageURL)
}

func TestStub_Select_FallbackReachesEveryTopic(t *testing.T) {
	stub := NewStub(StubOptions{})

	seen := make(map[Topic]bool)
	for range 1000 {
		seen[stub.Select("tell me something")] = true
	}
	for _, topic := range Topics() {
		assert.True(t, seen[topic], "topic %s never selected", topic)
	}
}

func TestStub_Select_DeterministicSource(t *testing.T) {
	var asked []int
	stub := NewStub(StubOptions{Intn: func(n int) int { asked = append(asked, n); return n - 1 }})

	assert.Equal(t, TopicRespiratory, stub.Select("nothing matches"))
	assert.Equal(t, []int{len(Topics())}, asked)

	assert.Equal(t, TopicCardio, stub.Select("heart"))
	assert.Len(t, asked, 1)
}

func history(texts ...string) []session.Message {
	msgs := make([]session.Message, 0, len(texts))
	for i, text := range texts {
		role := session.RoleUser
		if i%2 == 1 {
			role = session.RoleAssistant
		}
		msgs = append(msgs, session.Message{ID: text, Content: text, Role: role})
	}
	return msgs
}

func TestStub_Respond_UsesLatestUserMessage(t *testing.T) {
	stub := NewStub(StubOptions{})

	reply, err := stub.Respond(t.Context(), history("diabetes?", "answer", "what causes heart failure"), "")
	require.NoError(t, err)

	want, _ := CannedReply(TopicCardio)
	assert.Equal(t, want, reply)
}

func TestStub_Respond_WaitsConfiguredLatency(t *testing.T) {
	var slept []time.Duration
	stub := NewStub(StubOptions{
		Latency: 2 * time.Second,
		Jitter:  500 * time.Millisecond,
		Intn:    func(n int) int { return n / 2 },
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	})

	_, err := stub.Respond(t.Context(), history("lung"), "key")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2*time.Second + 250*time.Millisecond}, slept)
}

func TestStub_Respond_Cancelled(t *testing.T) {
	stub := NewStub(StubOptions{Latency: time.Hour})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := stub.Respond(ctx, history("heart"), "key")
	require.Error(t, err)
	assert.Equal(t, KindCancelled, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStub_Respond_DeadlineIsTimeout(t *testing.T) {
	stub := NewStub(StubOptions{Latency: time.Hour})

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	_, err := stub.Respond(ctx, history("heart"), "key")
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestLastUserText(t *testing.T) {
	_, ok := LastUserText(nil)
	assert.False(t, ok)

	text, ok := LastUserText(history("first", "reply"))
	require.True(t, ok)
	assert.Equal(t, "first", text)
}
