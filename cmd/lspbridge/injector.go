//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"github.com/google/wire"
	"github.com/russellhaering/lspbridge/pkg/autobridge"
	"github.com/russellhaering/lspbridge/pkg/config"
)

func initializeSession(cfg *config.Config, rootDir autobridge.RootDir) (autobridge.Session, func(), error) {
	wire.Build(autobridge.ProviderSet)
	return autobridge.Session{}, nil, nil
}
