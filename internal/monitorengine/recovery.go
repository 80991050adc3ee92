package monitorengine

import (
	"github.com/rs/zerolog/log"

	"github.com/oreoft/meme-trade-bot/internal/store"
)

// RecoverAll resurrects every monitor whose persisted status is
// "monitoring", as if Start had just been called for it (spec component
// C9). It runs at most once per Engine, guarded by a sync.Once, so a
// supervisor that calls it from multiple goroutines at startup is safe.
// A record that fails to reinstate is demoted to "stopped" without
// affecting the others.
func (e *Engine) RecoverAll() {
	e.recoverOnce.Do(func() {
		simples, err := e.st.ListSimpleMonitorsByStatus(store.StatusMonitoring)
		if err != nil {
			log.Error().Err(err).Msg("recover: list monitoring simple monitors failed")
		}
		recoveredSimple := 0
		for _, m := range simples {
			if ok, reason := e.StartSimple(m.ID); ok {
				recoveredSimple++
			} else {
				log.Error().Str("monitor", m.Name).Str("reason", reason).Msg("recover simple monitor failed, demoting to stopped")
				_ = e.st.SetSimpleMonitorStatus(m.ID, store.StatusStopped)
			}
		}

		swings, err := e.st.ListSwingMonitorsByStatus(store.StatusMonitoring)
		if err != nil {
			log.Error().Err(err).Msg("recover: list monitoring swing monitors failed")
		}
		recoveredSwing := 0
		for _, m := range swings {
			if ok, reason := e.StartSwing(m.ID); ok {
				recoveredSwing++
			} else {
				log.Error().Str("monitor", m.Name).Str("reason", reason).Msg("recover swing monitor failed, demoting to stopped")
				_ = e.st.SetSwingMonitorStatus(m.ID, store.StatusStopped)
			}
		}

		total := recoveredSimple + recoveredSwing
		if total > 0 {
			log.Info().Int("simple", recoveredSimple).Int("swing", recoveredSwing).Msg("monitor recovery complete")
		} else {
			log.Info().Msg("no monitors required recovery")
		}
	})
}
