package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// PayoutSettings are the tunables of the payout and maturity rules.
type PayoutSettings struct {
	Currency         string
	MinPayoutCents   int64
	MaxPayoutsPerDay int
	CreditCoolOff    time.Duration
}

// PayoutSettingsProvider yields the current settings. Callers ask on every
// operation so a change takes effect without a restart.
type PayoutSettingsProvider interface {
	PayoutSettings() PayoutSettings
}

// EnvPayoutSettings reads the settings from the environment on each call,
// falling back to defaults for unset or malformed values.
type EnvPayoutSettings struct{}

// PayoutSettings implements PayoutSettingsProvider.
func (EnvPayoutSettings) PayoutSettings() PayoutSettings {
	s, err := ReadPayoutSettings()
	if err != nil {
		return DefaultPayoutSettings()
	}
	return s
}

// StaticPayoutSettings always returns the wrapped value.
type StaticPayoutSettings PayoutSettings

// PayoutSettings implements PayoutSettingsProvider.
func (s StaticPayoutSettings) PayoutSettings() PayoutSettings {
	return PayoutSettings(s)
}

// DefaultPayoutSettings returns the built-in settings.
func DefaultPayoutSettings() PayoutSettings {
	return PayoutSettings{
		Currency:         defaultCurrency,
		MinPayoutCents:   defaultMinPayoutCents,
		MaxPayoutsPerDay: defaultMaxPayoutsDaily,
		CreditCoolOff:    defaultCreditCoolOff,
	}
}

// ReadPayoutSettings parses the WALLET_* variables.
func ReadPayoutSettings() (PayoutSettings, error) {
	s := DefaultPayoutSettings()
	s.Currency = getEnv(currencyEnvVar, s.Currency)

	if v := os.Getenv(minPayoutEnvVar); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return PayoutSettings{}, fmt.Errorf("invalid %s: %q", minPayoutEnvVar, v)
		}
		s.MinPayoutCents = n
	}
	if v := os.Getenv(maxPayoutsEnvVar); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return PayoutSettings{}, fmt.Errorf("invalid %s: %q", maxPayoutsEnvVar, v)
		}
		s.MaxPayoutsPerDay = n
	}
	if v := os.Getenv(coolOffEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return PayoutSettings{}, fmt.Errorf("invalid %s: %q", coolOffEnvVar, v)
		}
		s.CreditCoolOff = d
	}
	return s, nil
}
