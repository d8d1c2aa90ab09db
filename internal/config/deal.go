package config

import "time"

// Store selects the deal store backend.
type Store struct {
	// Backend is one of "memory", "postgres", "redis".
	Backend string `env:"STORE_BACKEND" envDefault:"memory"`
}

type Deal struct {
	LockTimeout time.Duration `env:"DEAL_LOCK_TIMEOUT" envDefault:"500ms"`

	// DeactivateZeroDiscount keeps the legacy rule that a zero-discount
	// deal retires after its first redemption.
	DeactivateZeroDiscount bool `env:"DEAL_DEACTIVATE_ZERO_DISCOUNT" envDefault:"false"`
}

type Sweeper struct {
	Period time.Duration `env:"SWEEP_PERIOD" envDefault:"1h"`

	// UseAsynq additionally schedules sweeps through asynq so that in a
	// multi-replica deployment each period is swept once. Requires redis.
	UseAsynq bool `env:"SWEEP_USE_ASYNQ" envDefault:"false"`
}
