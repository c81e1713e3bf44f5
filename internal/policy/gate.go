// Package policy gates write operations through operator-supplied OPA
// policies. Read paths never consult the gate.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/rego"
)

// Input is the document handed to the policy for evaluation.
type Input struct {
	Operation string      `json:"operation"` // e.g. "training-create", "replica-delete"
	Bundle    InputBundle `json:"bundle"`
	Resource  InputRes    `json:"resource"`
}

type InputBundle struct {
	Name           string `json:"name"`
	OrganizationID string `json:"organization_id"`
}

type InputRes struct {
	ReplicaID string `json:"replica_id,omitempty"`
	Type      string `json:"type,omitempty"`
	Title     string `json:"title,omitempty"`
}

// Decision is the policy outcome for one write.
type Decision struct {
	Allowed bool
	Reason  string
}

// Gate evaluates write operations against compiled rego modules. With no
// modules loaded, or when disabled, every operation is allowed.
type Gate struct {
	mu       sync.RWMutex
	prepared *rego.PreparedEvalQuery

	enabled    func() bool
	bundlePath func() string
	timeout    func() time.Duration
}

func NewGate(enabled func() bool, bundlePath func() string, timeout func() time.Duration) *Gate {
	return &Gate{enabled: enabled, bundlePath: bundlePath, timeout: timeout}
}

// Load compiles rego modules from the bundle path. Safe to call again on
// config reload.
func (g *Gate) Load() error {
	modules, err := LoadRegoFiles(g.bundlePath())
	if err != nil {
		return fmt.Errorf("load rego files: %w", err)
	}
	if len(modules) == 0 {
		g.mu.Lock()
		g.prepared = nil
		g.mu.Unlock()
		slog.Info("no ingestion policies found, gate is allow-all", "path", g.bundlePath())
		return nil
	}

	if err := g.LoadFromModules(modules); err != nil {
		return err
	}
	slog.Info("ingestion policies loaded", "modules", len(modules))
	return nil
}

// LoadFromModules compiles the given rego sources directly.
func (g *Gate) LoadFromModules(modules map[string]string) error {
	opts := []func(*rego.Rego){
		rego.Query("[data.mafcoach.ingest.allow, data.mafcoach.ingest.reason]"),
	}
	for name, src := range modules {
		opts = append(opts, rego.Module(name, src))
	}

	prepared, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("prepare rego: %w", err)
	}

	g.mu.Lock()
	g.prepared = &prepared
	g.mu.Unlock()
	return nil
}

// Evaluate runs the policy for one write operation. Evaluation errors fail
// open with a logged warning: a broken policy bundle must not take down
// ingestion entirely.
func (g *Gate) Evaluate(ctx context.Context, input Input) Decision {
	if !g.enabled() {
		return Decision{Allowed: true}
	}

	g.mu.RLock()
	prepared := g.prepared
	g.mu.RUnlock()
	if prepared == nil {
		return Decision{Allowed: true}
	}

	evalCtx, cancel := context.WithTimeout(ctx, g.timeout())
	defer cancel()

	results, err := prepared.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		slog.Warn("policy evaluation failed, allowing", "operation", input.Operation, "error", err)
		return Decision{Allowed: true}
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Allowed: true}
	}

	pair, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok || len(pair) < 1 {
		return Decision{Allowed: true}
	}

	allowed, _ := pair[0].(bool)
	reason := ""
	if len(pair) > 1 {
		reason, _ = pair[1].(string)
	}
	if !allowed && reason == "" {
		reason = "operation denied by ingestion policy"
	}
	return Decision{Allowed: allowed, Reason: reason}
}
