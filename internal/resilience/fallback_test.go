package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/voxform/voxform/pkg/provider/llm"
	"github.com/voxform/voxform/pkg/provider/llm/mock"
)

func decisionMock(action string) *mock.Provider {
	return &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: `{"action":"` + action + `","confidence":0.9}`,
	}}
}

func completeVia(fg *FallbackGroup[llm.Provider]) (*llm.CompletionResponse, error) {
	req := llm.CompletionRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "set the location"}}}
	return ExecuteWithResult(fg, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(context.Background(), req)
	})
}

func TestFallbackGroup_PrimaryHandlesTheCall(t *testing.T) {
	primary := decisionMock("update_field")
	standby := decisionMock("clarify")

	fg := NewFallbackGroup[llm.Provider](primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("ollama", standby)

	resp, err := completeVia(fg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.Content, "update_field") {
		t.Errorf("Content = %q, want the primary's decision", resp.Content)
	}
	if len(standby.CompleteCalls) != 0 {
		t.Error("standby was called although the primary succeeded")
	}
}

func TestFallbackGroup_FailoverPreservesOrder(t *testing.T) {
	primary := &mock.Provider{CompleteErr: errTest}
	second := &mock.Provider{CompleteErr: errTest}
	third := decisionMock("acknowledge")

	fg := NewFallbackGroup[llm.Provider](primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("anthropic", second)
	fg.AddFallback("ollama", third)

	resp, err := completeVia(fg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.Content, "acknowledge") {
		t.Errorf("Content = %q, want the third provider's decision", resp.Content)
	}
	if len(primary.CompleteCalls) != 1 || len(second.CompleteCalls) != 1 {
		t.Errorf("call counts = %d/%d, want each failing provider tried exactly once",
			len(primary.CompleteCalls), len(second.CompleteCalls))
	}
}

func TestFallbackGroup_AllFailWrapsLastError(t *testing.T) {
	primary := &mock.Provider{CompleteErr: errors.New("quota exhausted")}
	standby := &mock.Provider{CompleteErr: errors.New("model not loaded")}

	fg := NewFallbackGroup[llm.Provider](primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("ollama", standby)

	_, err := completeVia(fg)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("err = %v, want the last provider's failure carried along", err)
	}
}

func TestFallbackGroup_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &mock.Provider{CompleteErr: errTest}
	standby := decisionMock("acknowledge")

	fg := NewFallbackGroup[llm.Provider](primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	fg.AddFallback("ollama", standby)

	// Two failing calls open the primary's breaker.
	for i := 0; i < 2; i++ {
		if _, err := completeVia(fg); err != nil {
			t.Fatalf("unexpected error while standby is healthy: %v", err)
		}
	}

	before := len(primary.CompleteCalls)
	resp, err := completeVia(fg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.Content, "acknowledge") {
		t.Errorf("Content = %q, want the standby's decision", resp.Content)
	}
	if len(primary.CompleteCalls) != before {
		t.Error("primary was invoked while its circuit was open")
	}
}

// Each entry carries its own breaker, so standby failures never trip the
// primary's circuit.
func TestFallbackGroup_BreakersAreIndependent(t *testing.T) {
	primary := decisionMock("update_field")
	standby := &mock.Provider{CompleteErr: errTest}

	fg := NewFallbackGroup[llm.Provider](primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	fg.AddFallback("ollama", standby)

	for i := 0; i < 3; i++ {
		resp, err := completeVia(fg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(resp.Content, "update_field") {
			t.Fatalf("Content = %q, want the primary's decision every time", resp.Content)
		}
	}
	if len(standby.CompleteCalls) != 0 {
		t.Error("standby was called although the primary never failed")
	}
}

func TestFallbackGroup_ExecuteErrorOnly(t *testing.T) {
	warmed := make(map[string]bool)
	primary := decisionMock("update_field")
	standby := decisionMock("clarify")

	fg := NewFallbackGroup[llm.Provider](primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("ollama", standby)

	err := fg.Execute(func(p llm.Provider) error {
		if p == primary {
			warmed["openai"] = true
			return errTest
		}
		warmed["ollama"] = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !warmed["openai"] || !warmed["ollama"] {
		t.Errorf("warmed = %v, want the failed primary and then the standby visited", warmed)
	}
}
