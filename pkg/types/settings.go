package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CurrentBindingVersion is the current version of the binding struct.
// Increment this value when a stored binding needs rewriting on load.
const CurrentBindingVersion = 2

// Regions are the CEZ Distribuce regions accepted by the HDO endpoint.
var Regions = []string{"zapad", "sever", "stred", "vychod", "morava"}

// BindingConfig associates a region and HDO command code with the prices
// charged in the low and high tariff.
type BindingConfig struct {
	Command         string  `json:"command" validate:"required,alphanum,max=32"`
	Region          string  `json:"region" validate:"required,oneof=zapad sever stred vychod morava"`
	LowTariffPrice  float64 `json:"low_tarif_price" validate:"gte=0"`
	HighTariffPrice float64 `json:"high_tarif_price" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ID returns the binding identifier, e.g. "stred_CHLV1".
func (c BindingConfig) ID() string {
	return c.Region + "_" + c.Command
}

// Normalize upper-cases the command and reduces the region to one of
// Regions when it contains one, so "regionStred" becomes "stred".
func (c BindingConfig) Normalize() BindingConfig {
	c.Command = strings.ToUpper(strings.TrimSpace(c.Command))
	if r, ok := NormalizeRegion(c.Region); ok {
		c.Region = r
	}
	return c
}

// NormalizeRegion returns the first known region contained in region,
// ignoring case.
func NormalizeRegion(region string) (string, bool) {
	region = strings.ToLower(region)
	for _, r := range Regions {
		if strings.Contains(region, r) {
			return r, true
		}
	}
	return "", false
}

// Validate checks the binding after normalization.
func (c BindingConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid binding %s: failed %s check (value %v)", fe.Field(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid binding: %w", err)
}

// MigrateBinding migrates a stored binding to the current version.
// It returns the migrated binding, a boolean indicating if changes were made, and an error if migration failed.
func MigrateBinding(c BindingConfig, currentVersion int) (BindingConfig, bool, error) {
	if currentVersion >= CurrentBindingVersion {
		return c, false, nil
	}

	migrated := false
	for version := currentVersion + 1; version <= CurrentBindingVersion; version++ {
		switch version {
		case 1:
			// version 1: commands are stored upper-cased
			if upper := strings.ToUpper(c.Command); upper != c.Command {
				c.Command = upper
				migrated = true
			}
		case 2:
			// version 2: regions are stored as the bare region name
			if r, ok := NormalizeRegion(c.Region); ok && r != c.Region {
				c.Region = r
				migrated = true
			}
		default:
			return c, false, fmt.Errorf("unknown binding version: %d", version)
		}
	}

	return c, migrated, nil
}
