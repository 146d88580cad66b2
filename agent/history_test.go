package agent

import (
	"testing"

	"github.com/juniperhq/coxswain/llmwire"
)

func TestHistorySnapshotIsolation(t *testing.T) {
	h := NewHistory()
	h.Append(llmwire.UserText("first"))

	snapshot := h.Snapshot()
	h.Append(llmwire.ModelText("second"))

	if len(snapshot) != 1 {
		t.Errorf("snapshot must not observe later appends, got %d entries", len(snapshot))
	}
	if h.Len() != 2 {
		t.Errorf("expected 2 entries in the log, got %d", h.Len())
	}
}

func TestHistoryReset(t *testing.T) {
	h := NewHistory()
	h.Append(llmwire.UserText("hello"), llmwire.ModelText("hi"))
	h.Reset()
	if h.Len() != 0 {
		t.Errorf("expected empty log after reset, got %d", h.Len())
	}
}

func TestHistoryUnpairedCalls(t *testing.T) {
	h := NewHistory()
	h.Append(
		llmwire.Content{Role: llmwire.RoleModel, Parts: []llmwire.Part{
			llmwire.CallPart(llmwire.FunctionCall{ID: "a", Name: "echo"}),
		}},
		llmwire.Content{Role: llmwire.RoleUser, Parts: []llmwire.Part{
			llmwire.ResponsePart(llmwire.FunctionResponse{ID: "a", Name: "echo", Response: map[string]interface{}{"output": "ok"}}),
		}},
		llmwire.Content{Role: llmwire.RoleModel, Parts: []llmwire.Part{
			llmwire.CallPart(llmwire.FunctionCall{ID: "b", Name: "echo"}),
		}},
	)

	unpaired := h.UnpairedCalls()
	if len(unpaired) != 1 || unpaired[0] != "b" {
		t.Errorf("expected [b] unpaired, got %v", unpaired)
	}
}
