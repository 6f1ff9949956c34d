package ratelimit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy is a named window budget.
type Policy struct {
	Action string        `yaml:"-"`
	Window time.Duration `yaml:"window"`
	Max    int           `yaml:"max"`
}

// Policies is the table of predefined actions.
type Policies struct {
	Login        Policy `yaml:"login"`
	Verification Policy `yaml:"verification"`
	TwoFactor    Policy `yaml:"twofa"`
	SMS          Policy `yaml:"sms"`
}

// DefaultPolicies returns the built-in budgets.
func DefaultPolicies() Policies {
	return Policies{
		Login:        Policy{Action: "login", Window: 15 * time.Minute, Max: 5},
		Verification: Policy{Action: "verification", Window: 5 * time.Minute, Max: 3},
		TwoFactor:    Policy{Action: "2fa", Window: 10 * time.Minute, Max: 5},
		SMS:          Policy{Action: "sms", Window: time.Hour, Max: 3},
	}
}

// LoadPolicyFile overlays a YAML file on the defaults. Entries that are
// missing or zero keep their default value.
//
//	login:
//	  window: 15m
//	  max: 5
func LoadPolicyFile(path string) (Policies, error) {
	base := DefaultPolicies()
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read rate limit policy file: %w", err)
	}
	var overlay Policies
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return base, fmt.Errorf("parse rate limit policy file: %w", err)
	}
	base.Login = merge(base.Login, overlay.Login)
	base.Verification = merge(base.Verification, overlay.Verification)
	base.TwoFactor = merge(base.TwoFactor, overlay.TwoFactor)
	base.SMS = merge(base.SMS, overlay.SMS)
	return base, nil
}

func merge(base, over Policy) Policy {
	if over.Window > 0 {
		base.Window = over.Window
	}
	if over.Max > 0 {
		base.Max = over.Max
	}
	return base
}
