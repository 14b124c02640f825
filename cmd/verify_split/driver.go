package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ajsharma/verify_split/internal/browser"
	"github.com/ajsharma/verify_split/internal/cdp"
	"github.com/ajsharma/verify_split/internal/config"
	"github.com/ajsharma/verify_split/internal/pwpage"
	"github.com/ajsharma/verify_split/internal/rodpage"
)

// newDriver returns the browser driver named by cfg.Driver.
func newDriver(cfg *config.Config, log *zap.Logger) (browser.Driver, error) {
	switch cfg.Driver {
	case config.DriverChromedp, "":
		return cdp.NewDriver(cfg, log), nil
	case config.DriverRod:
		return rodpage.NewDriver(cfg, log), nil
	case config.DriverPlaywright:
		return pwpage.NewDriver(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}
