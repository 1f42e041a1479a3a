// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/veilstream/conduit/pkg/actions/httprequest"
	logaction "github.com/veilstream/conduit/pkg/actions/log"
	"github.com/veilstream/conduit/pkg/actions/transform"
	"github.com/veilstream/conduit/pkg/registry"
)

// NewRegistry builds a registry with the native action set.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterAction(httprequest.NewActionFactory())
	reg.RegisterAction(transform.NewActionFactory())
	reg.RegisterAction(logaction.NewActionFactory())

	return reg
}
