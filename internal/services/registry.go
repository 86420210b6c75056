// Package services wires the shiftd service graph. The daemon builds
// every service once at startup and hands the registry to the
// transport layer.
package services

import (
	"github.com/fyrsmithlabs/shiftd/internal/engine"
	"github.com/fyrsmithlabs/shiftd/internal/events"
	"github.com/fyrsmithlabs/shiftd/internal/generator"
	"github.com/fyrsmithlabs/shiftd/internal/roster"
)

// Registry provides access to all shiftd services.
// Use accessor methods to retrieve individual services.
type Registry interface {
	Engine() *engine.Engine
	Roster() roster.Store
	Generator() generator.Generator
	Events() events.Publisher
}

// Options configures the registry with service instances.
type Options struct {
	Engine    *engine.Engine
	Roster    roster.Store
	Generator generator.Generator
	Events    events.Publisher
}

// registry is the concrete implementation of Registry.
type registry struct {
	engine    *engine.Engine
	roster    roster.Store
	generator generator.Generator
	events    events.Publisher
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		engine:    opts.Engine,
		roster:    opts.Roster,
		generator: opts.Generator,
		events:    opts.Events,
	}
}

func (r *registry) Engine() *engine.Engine        { return r.engine }
func (r *registry) Roster() roster.Store          { return r.roster }
func (r *registry) Generator() generator.Generator { return r.generator }
func (r *registry) Events() events.Publisher      { return r.events }
