package config

import "fmt"

var (
	MinQuotaEpochSeconds = uint32(60)
)

func ValidateConfig(c Config) error {
	if c.Quota.MaxRequestsPerEpoch > 0 || c.Quota.MaxValuePerEpoch > 0 {
		if c.Quota.EpochSeconds < MinQuotaEpochSeconds {
			return fmt.Errorf("quota: epoch_seconds too small")
		}
	}
	if err := c.Lending.Validate(); err != nil {
		return fmt.Errorf("lending: %w", err)
	}
	return nil
}
