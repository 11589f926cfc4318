// ABOUTME: Tests for the OpenAI-compatible responder against a fake HTTP endpoint
// ABOUTME: Covers request shape, error classification, and flowchart extraction

package responder

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompletion struct {
	status  int
	content string
	gotAuth string
	gotBody map[string]any
}

func (f *fakeCompletion) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.gotBody))

		w.Header().Set("Content-Type", "application/json")
		if f.status != 0 && f.status != http.StatusOK {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
			return
		}
		resp := map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": f.content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func newFakeOpenAI(t *testing.T, f *fakeCompletion) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewOpenAI(OpenAIOptions{BaseURL: srv.URL + "/v1", Timeout: 5 * time.Second})
}

func TestOpenAI_SendsHistoryWithCredential(t *testing.T) {
	f := &fakeCompletion{content: "Plain answer."}
	o := newFakeOpenAI(t, f)

	reply, err := o.Respond(t.Context(), history("q1", "a1", "q2"), "sk-test")
	require.NoError(t, err)
	assert.Equal(t, Reply{Text: "Plain answer."}, reply)

	assert.Equal(t, "Bearer sk-test", f.gotAuth)
	msgs, ok := f.gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	roles := make([]string, 0, len(msgs))
	for _, m := range msgs {
		roles = append(roles, m.(map[string]any)["role"].(string))
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
}

func TestOpenAI_ErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusInternalServerError, KindUpstream},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			o := newFakeOpenAI(t, &fakeCompletion{status: tt.status})
			_, err := o.Respond(t.Context(), history("q"), "sk-test")
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
		})
	}
}

func TestOpenAI_EmptyContent(t *testing.T) {
	o := newFakeOpenAI(t, &fakeCompletion{content: "   "})
	_, err := o.Respond(t.Context(), history("q"), "sk-test")
	assert.Equal(t, KindEmptyReply, KindOf(err))
}

func TestOpenAI_ExtractsFlowchart(t *testing.T) {
	content := "Here is the approach.\n\n```flowchart\n{\"title\":\"Chest pain\",\"steps\":[{\"title\":\"ECG\"},{\"title\":\"Troponin\"}]}\n```\n"
	o := newFakeOpenAI(t, &fakeCompletion{content: content})

	reply, err := o.Respond(t.Context(), history("chest pain?"), "sk-test")
	require.NoError(t, err)
	assert.Equal(t, "Here is the approach.", reply.Text)
	assert.JSONEq(t, `{"title":"Chest pain","steps":[{"title":"ECG"},{"title":"Troponin"}]}`, reply.DiagramPayload)
	assert.Empty(t, reply.Diagram)
}

func TestSplitFlowchart_MalformedStaysInText(t *testing.T) {
	content := "Steps:\n```flowchart\nnot json\n```"
	reply := splitFlowchart(content)
	assert.Equal(t, content, reply.Text)
	assert.Empty(t, reply.Diagram)
	assert.Empty(t, reply.DiagramPayload)

	unterminated := "Steps:\n```flowchart\n{\"steps\":[{\"title\":\"A\"}]}"
	assert.Empty(t, splitFlowchart(unterminated).DiagramPayload)
}
