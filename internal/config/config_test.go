package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/planner"
)

func TestFromViper_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg := FromViper(v)

	assert.Equal(t, 0.8, cfg.Planner.Params.YieldFactor)
	assert.Equal(t, 0.9, cfg.Planner.Params.DensityFactor)
	assert.Equal(t, 300.0, cfg.Planner.Params.MaxProduction)
	assert.Equal(t, domain.Minimize, cfg.Planner.Params.Objective)
	assert.Equal(t, domain.TerminalAuto, cfg.Planner.Params.Terminal)
	assert.NoError(t, cfg.Planner.Params.Validate())

	assert.Equal(t, 52, cfg.Planner.Horizon)
	assert.Equal(t, 5, cfg.Planner.MaxAttempts)
	assert.Equal(t, planner.DefaultSolveTimeout, cfg.Planner.SolveTimeout)
	assert.Equal(t, int32(3), cfg.Planner.Precision)
	assert.Equal(t, planner.DefaultRelaxationConfig(), cfg.Planner.Relaxation)

	assert.Equal(t, "none", cfg.Database.Driver)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 4, cfg.App.Workers)
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("PLANNER_OBJECTIVE", "Maximize")
	v.Set("PLANNER_TERMINAL_POLICY", "floor")
	v.Set("PLANNER_SOLVE_TIMEOUT", "250ms")
	v.Set("RELAX_CAPACITY_MULTIPLIER", 7)
	v.Set("DB_DRIVER", "sqlite")

	cfg := FromViper(v)

	assert.Equal(t, domain.Maximize, cfg.Planner.Params.Objective)
	assert.Equal(t, domain.TerminalFloorOnly, cfg.Planner.Params.Terminal)
	assert.Equal(t, 250*time.Millisecond, cfg.Planner.SolveTimeout)
	assert.Equal(t, 7.0, cfg.Planner.Relaxation.CapacityMultiplier)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestFromViper_InvalidObjectiveFailsValidation(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("PLANNER_OBJECTIVE", "sideways")

	err := FromViper(v).Planner.Params.Validate()
	require.Error(t, err)
	assert.True(t, domain.IsConfigurationError(err))
}
