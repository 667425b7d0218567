// Package testutil wires real components over in-memory stores for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomodb/core/bootstrap"
	"github.com/trezcool/masomodb/core/entity"
	"github.com/trezcool/masomodb/core/user"
	logsvc "github.com/trezcool/masomodb/services/logger"
	"github.com/trezcool/masomodb/storage/cache"
	"github.com/trezcool/masomodb/storage/remote"
	"github.com/trezcool/masomodb/storage/state/inmem"
)

const Password = "Karibu#Shule2024"

// Stack is an orchestrator over the in-memory remote store.
type Stack struct {
	Orchestrator *bootstrap.Orchestrator
	Gateway      *remote.Gateway
	Tracker      *inmem.Tracker
}

func NewStack(t *testing.T) Stack {
	t.Helper()
	user.HashCost = bcrypt.MinCost

	logger := logsvc.NewNop()
	gw := remote.NewGateway(cache.NewMemory(64, time.Minute), logger)
	tracker := inmem.NewTracker()
	orch, err := bootstrap.New(
		bootstrap.Deps{Remote: gw, Tracker: tracker, Catalog: entity.NewCatalog(), Logger: logger},
		bootstrap.Options{RemoteURL: "memory://", DefaultPassword: Password},
	)
	if err != nil {
		t.Fatalf("bootstrap.New() failed: %v", err)
	}
	t.Cleanup(func() {
		_ = orch.Close()
		_ = gw.Close()
	})
	return Stack{Orchestrator: orch, Gateway: gw, Tracker: tracker}
}

// Bootstrap runs the orchestrator and fails the test unless the run succeeded.
func (s Stack) Bootstrap(t *testing.T) bootstrap.InitializationReport {
	t.Helper()
	report, err := s.Orchestrator.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !report.Success {
		t.Fatalf("Run() report = %+v", report)
	}
	return report
}
