package fallback

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// probeCommands are trivial commands any usable shell can run. If these
// themselves fail, the environment cannot run package managers either, and
// further remediation attempts are pointless.
var probeCommands = []string{"ls", "echo ok"}

const probeTimeout = 5 * time.Second

// RestrictedDetector decides whether the execution environment is too
// restricted for remediation. The verdict is cached per probe command so
// the probes run once per process.
type RestrictedDetector struct {
	runner CommandRunner
	cache  *AvailabilityCache
}

// NewRestrictedDetector creates a detector sharing the given cache.
func NewRestrictedDetector(runner CommandRunner, cache *AvailabilityCache) *RestrictedDetector {
	if cache == nil {
		cache = NewAvailabilityCache()
	}
	return &RestrictedDetector{runner: runner, cache: cache}
}

// IsRestricted reports whether basic commands fail in this environment.
func (d *RestrictedDetector) IsRestricted(ctx context.Context) bool {
	for _, probe := range probeCommands {
		if available, known := d.cache.Lookup(probe); known {
			if !available {
				return true
			}
			continue
		}

		result, err := d.runner.Run(ctx, probe, probeTimeout)
		available := err == nil && result.Succeeded()
		d.cache.Store(probe, available)
		if !available {
			log.Warn().Str("probe", probe).Msg("basic command failed, environment is restricted")
			return true
		}
	}
	return false
}
