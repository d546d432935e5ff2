package cmd

import (
	"time"

	"github.com/displayhal/composerconf/internal/config"
	"github.com/displayhal/composerconf/internal/hal"
	"github.com/displayhal/composerconf/internal/halsim"
	"github.com/displayhal/composerconf/internal/session"
)

// connectService produces the composition service the commands run against.
// A real transport binding can replace this hook; the default is the
// in-process simulator shaped by the config file.
var connectService = func(cfg *config.Config) (hal.Service, error) {
	return halsim.New(halsim.Options{
		DisplayCount:      cfg.Simulator.DisplayCount,
		ConfigsPerDisplay: cfg.Simulator.ConfigsPerDisplay,
		InterfaceVersion:  int32(cfg.Simulator.InterfaceVersion),
		BatchedLifecycle:  cfg.Simulator.BatchedLifecycle,
	}), nil
}

func newSession() (*session.Session, error) {
	cfg := config.Get()
	service, err := connectService(cfg)
	if err != nil {
		return nil, err
	}
	return session.New(service, session.Options{
		PollInterval:       time.Duration(cfg.Discovery.PollIntervalMs) * time.Millisecond,
		DiscoveryTimeout:   time.Duration(cfg.Discovery.TimeoutMs) * time.Millisecond,
		MaxFrameIntervalNs: int32(cfg.Service.MaxFrameIntervalMs) * int32(time.Millisecond),
	})
}
