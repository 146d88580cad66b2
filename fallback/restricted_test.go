package fallback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRestrictedDetectorHealthyEnvironment(t *testing.T) {
	runner := newScriptedRunner()
	detector := NewRestrictedDetector(runner, NewAvailabilityCache())

	assert.False(t, detector.IsRestricted(context.Background()))
	assert.Equal(t, []string{"ls", "echo ok"}, runner.calls)
}

func TestRestrictedDetectorFailingProbes(t *testing.T) {
	runner := newScriptedRunner()
	runner.script("ls", failure("ls: command not found"))
	detector := NewRestrictedDetector(runner, NewAvailabilityCache())

	assert.True(t, detector.IsRestricted(context.Background()))
}

func TestRestrictedDetectorCachesProbes(t *testing.T) {
	runner := newScriptedRunner()
	cache := NewAvailabilityCache()
	detector := NewRestrictedDetector(runner, cache)

	detector.IsRestricted(context.Background())
	detector.IsRestricted(context.Background())

	// Probes ran once each despite two checks.
	assert.Len(t, runner.calls, 2)
}
