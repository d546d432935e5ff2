package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/displayhal/composerconf/internal/config"
	"github.com/displayhal/composerconf/internal/hal"
	"github.com/displayhal/composerconf/internal/logger"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the full conformance sweep",
	Long: `Run one complete session against the composition service: negotiate
capabilities, discover displays, exercise the layer and virtual display
lifecycle, then tear everything down and verify no unexpected events
arrived.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		s, err := newSession()
		if err != nil {
			return fmt.Errorf("session setup failed: %w", err)
		}

		logger.Infof("negotiated version %d, batched lifecycle: %v",
			s.InterfaceVersion(), s.SupportsBatchedLayerLifecycle())

		displays, err := s.Displays(context.Background())
		if err != nil {
			return fmt.Errorf("display discovery failed: %w", err)
		}
		logger.Infof("discovered %d display(s)", len(displays))

		slotCount := int32(cfg.Service.BufferSlotCount)
		for _, display := range displays {
			width, height := display.Dimensions()
			logger.Infof("display %d: %dx%d, %d config(s)", display.ID(), width, height, len(display.Configs()))

			layer, err := s.CreateLayer(display.ID(), slotCount)
			if err != nil {
				return fmt.Errorf("layer create on display %d failed: %w", display.ID(), err)
			}
			logger.Debugf("created layer %d on display %d", layer, display.ID())

			if err := s.SetClientTargetSlotCount(display.ID(), int32(cfg.Service.ClientTargetSlots)); err != nil {
				return fmt.Errorf("client target slot count on display %d failed: %w", display.ID(), err)
			}
			if err := s.SetPeakRefreshRateConfig(display); err != nil {
				return fmt.Errorf("peak refresh rate config on display %d failed: %w", display.ID(), err)
			}
		}

		vd, err := s.CreateVirtualDisplay(640, 480, hal.PixelFormatRGBA8888, slotCount)
		if err != nil {
			logger.Warnf("virtual display creation not available: %v", err)
		} else {
			logger.Debugf("created virtual display %d", vd.Display)
			if _, err := s.CreateLayer(vd.Display, slotCount); err != nil {
				return fmt.Errorf("layer create on virtual display %d failed: %w", vd.Display, err)
			}
		}

		if s.SupportsBatchedLayerLifecycle() {
			results, err := s.Flush()
			if err != nil {
				s.EvictPending()
				return fmt.Errorf("batch flush failed: %w", err)
			}
			failed := false
			for _, result := range results {
				if result.Error != nil {
					failed = true
					logger.Errorf("batch command %d failed: %v", result.Error.CommandIndex, result.Error.Err)
				}
			}
			if failed {
				s.EvictPending()
				return fmt.Errorf("batch execution reported failures")
			}
			s.ConfirmPending()
		}

		if err := s.TearDown(); err != nil {
			return fmt.Errorf("teardown failed: %w", err)
		}

		fmt.Println("PASS")
		return nil
	},
}
