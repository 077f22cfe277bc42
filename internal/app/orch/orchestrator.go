package orch

import (
	"github.com/dkeye/SyncRoom/internal/app"
)

// Orchestrator is the synchronization engine. It resolves rooms through the
// registry and runs the room entity operations. Rooms publish their own
// notifications; the orchestrator returns them as well for callers that
// want to inspect what happened.
type Orchestrator struct {
	Registry *app.Registry
}

func New(reg *app.Registry) *Orchestrator {
	return &Orchestrator{Registry: reg}
}
