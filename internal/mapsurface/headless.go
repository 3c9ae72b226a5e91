package mapsurface

import (
	"sync"

	"github.com/streetside/panoview/internal/mapstyle"
)

// Headless is a Surface with no rendering. It records what it was told to
// show and optionally calls OnApply, which lets a host emit platform
// callbacks from inside a reconfiguration.
type Headless struct {
	OnApply func(mapstyle.RenderConfiguration)

	mu      sync.Mutex
	history []mapstyle.RenderConfiguration
}

// ApplyRenderConfiguration records cfg and calls OnApply. It never fails.
func (h *Headless) ApplyRenderConfiguration(cfg mapstyle.RenderConfiguration) error {
	h.mu.Lock()
	h.history = append(h.history, cfg)
	h.mu.Unlock()

	if h.OnApply != nil {
		h.OnApply(cfg)
	}
	return nil
}

// Current returns the last applied configuration.
func (h *Headless) Current() (mapstyle.RenderConfiguration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.history) == 0 {
		return mapstyle.RenderConfiguration{}, false
	}
	return h.history[len(h.history)-1], true
}

// History returns every applied configuration in order.
func (h *Headless) History() []mapstyle.RenderConfiguration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]mapstyle.RenderConfiguration(nil), h.history...)
}
