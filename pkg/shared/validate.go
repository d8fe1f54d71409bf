package shared

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/common/model"
)

// Labels every monitor sets on its own. Configured labels may not reuse them.
const (
	LabelMonitoredPath = "monitored_path"
	LabelMountPoint    = "mount_point"
	LabelService       = "service"
	LabelEntityName    = "entity_name"
)

var reservedLabels = map[string]struct{}{
	LabelMonitoredPath: {},
	LabelMountPoint:    {},
	LabelService:       {},
	LabelEntityName:    {},
}

var ErrInvalidConfig = errors.New("invalid configuration")

// IsReservedLabel reports whether name is one of the labels monitors set on their own.
func IsReservedLabel(name string) bool {
	_, reserved := reservedLabels[name]
	return reserved
}

// Validate checks the shape of an already loaded configuration and reports every problem found.
// It does not enforce the label-key subset rule, the monitor factory owns that invariant.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Port < 1 || c.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("%w: port %d is out of range 1-65535", ErrInvalidConfig, c.Port))
	}
	if c.RefreshInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: refresh_interval must be positive, got %d", ErrInvalidConfig, c.RefreshInterval))
	}
	if err := c.ExpirationMonitoring.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

func (m *MonitoringConfig) Validate() error {
	var result *multierror.Error

	for key := range m.DefaultLabels {
		if err := checkLabelName(key); err != nil {
			result = multierror.Append(result, err)
		}
	}

	for i, svc := range m.Services {
		if svc.Name == "" {
			result = multierror.Append(result, fmt.Errorf("%w: services[%d] has no name", ErrInvalidConfig, i))
		}
		for key := range svc.Labels {
			if err := checkLabelName(key); err != nil {
				result = multierror.Append(result, fmt.Errorf("service %q: %w", svc.Name, err))
			}
		}
		for j, secret := range svc.Secrets {
			if secret.MountPoint == "" || secret.Path == "" {
				result = multierror.Append(result, fmt.Errorf("%w: service %q secrets[%d] needs mount_point and path", ErrInvalidConfig, svc.Name, j))
			}
		}
		for j, entity := range svc.Entities {
			if entity.ID == "" || entity.Name == "" {
				result = multierror.Append(result, fmt.Errorf("%w: service %q entities[%d] needs id and name", ErrInvalidConfig, svc.Name, j))
			}
		}
		for j, approle := range svc.AppRoles {
			if approle.ID == "" || approle.Name == "" {
				result = multierror.Append(result, fmt.Errorf("%w: service %q approles[%d] needs id and name", ErrInvalidConfig, svc.Name, j))
			}
		}
	}

	return result.ErrorOrNil()
}

func checkLabelName(name string) error {
	if IsReservedLabel(name) {
		return fmt.Errorf("%w: label %q is reserved", ErrInvalidConfig, name)
	}
	if !model.LabelName(name).IsValidLegacy() {
		return fmt.Errorf("%w: %q is not a valid Prometheus label name", ErrInvalidConfig, name)
	}
	return nil
}
