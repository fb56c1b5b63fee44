package framepool

import (
	"errors"
	"fmt"
	"time"
)

const (
	KiB = 1024
	MiB = KiB * KiB

	DefaultFrameSize = 32 * KiB
)

// Config represents the configuration of a Pool.
type Config struct {
	// BudgetBytes is the initial ceiling on bytes simultaneously outstanding or pooled.
	// It must hold at least one minimum-size frame.
	BudgetBytes int

	// Dynamic enables budget resizing through Pool.Resize. A dynamic pool
	// deallocates released frames eagerly while it is above its desired budget.
	Dynamic bool
}

// Validate checks c against the minimum frame size of ctx.
func (c Config) Validate(ctx AllocationContext) error {
	var errs []error
	if c.BudgetBytes <= 0 {
		errs = append(errs, errors.New("invalid config: budget must be positive"))
	} else if minSize := ctx.MinFrameSize(); c.BudgetBytes < minSize {
		errs = append(
			errs,
			fmt.Errorf("invalid config: budget %d is smaller than the minimum frame size %d", c.BudgetBytes, minSize),
		)
	}
	return errors.Join(errs...)
}

// DefaultConfig returns a static pool config with a budget of budgetFrames minimum-size frames.
func DefaultConfig(ctx AllocationContext, budgetFrames int) Config {
	return Config{
		BudgetBytes: budgetFrames * ctx.MinFrameSize(),
		Dynamic:     false,
	}
}

// ManagerConfig represents the configuration of a Manager.
type ManagerConfig struct {
	// TotalFrames is the number of minimum-size frames shared by all dynamic pools.
	TotalFrames int

	// RebalanceInterval is how often Manager.Run redistributes TotalFrames.
	// A value <= 0 disables periodic rebalancing.
	RebalanceInterval time.Duration
}

// Validate checks that c describes a usable frame budget.
func (c ManagerConfig) Validate() error {
	var errs []error
	if c.TotalFrames <= 0 {
		errs = append(errs, errors.New("invalid config: total frames must be positive"))
	}
	if c.RebalanceInterval < 0 {
		errs = append(errs, errors.New("invalid config: rebalance interval must not be negative"))
	}
	return errors.Join(errs...)
}

// DefaultManagerConfig returns a manager config sharing 4096 frames.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		TotalFrames:       4096,             // 128MB of default-size frames.
		RebalanceInterval: 10 * time.Second, // Redistribute the budget every 10s.
	}
}
