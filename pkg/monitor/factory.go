/*
Monitor factory.

  Logic:
	1. The keys of the global prometheus_labels are the label-key set shared by every monitor.
	2. Each service merges its own labels over the global ones. A service key that is not part of
	   the global set would give one monitor a different label schema than its siblings, so the
	   whole configuration is rejected before any monitor is built or any request is sent.
	3. Secrets are built first (recursive entries are expanded through Vault listings), then
	   entities, then AppRoles. Services are processed in declaration order.
*/

package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/MatteoMori/vaultmonitor/pkg/shared"
)

var ErrLabelSchema = errors.New("label schema violation")

type servicePlan struct {
	service shared.ServiceConfig
	labels  map[string]string
	fields  shared.FieldNames
}

// CheckLabelSchema verifies that no service adds a label key missing from the global label set and
// that no configured label uses a name monitors set themselves.
func CheckLabelSchema(cfg shared.MonitoringConfig) error {
	_, err := planServices(cfg)
	return err
}

func planServices(cfg shared.MonitoringConfig) ([]servicePlan, error) {
	plans := make([]servicePlan, 0, len(cfg.Services))

	for _, k := range sortedKeys(cfg.DefaultLabels) {
		if shared.IsReservedLabel(k) {
			return nil, fmt.Errorf("%w: prometheus_labels uses the reserved label %q", ErrLabelSchema, k)
		}
	}

	for _, svc := range cfg.Services {
		overrideKeys := sortedKeys(svc.Labels)

		labels := make(map[string]string, len(cfg.DefaultLabels))
		for k, v := range cfg.DefaultLabels {
			labels[k] = v
		}
		for _, k := range overrideKeys {
			if shared.IsReservedLabel(k) {
				return nil, fmt.Errorf("%w: service %q configures the reserved label %q", ErrLabelSchema, svc.Name, k)
			}
			if _, known := cfg.DefaultLabels[k]; !known {
				return nil, fmt.Errorf("%w: service %q configures label %q which is not in the globally configured prometheus_labels",
					ErrLabelSchema, svc.Name, k)
			}
			labels[k] = svc.Labels[k]
		}

		plans = append(plans, servicePlan{
			service: svc,
			labels:  labels,
			fields:  svc.FieldNames.Resolve(cfg.DefaultFieldNames),
		})
	}

	return plans, nil
}

// Build turns the monitoring configuration into monitors. Either every monitor is returned or none.
func Build(ctx context.Context, cfg shared.MonitoringConfig, reader Reader, sink Sink) ([]Monitor, error) {
	plans, err := planServices(cfg)
	if err != nil {
		return nil, err
	}

	var monitors []Monitor
	for _, plan := range plans {
		svc := plan.service
		slog.Info("Configuring monitoring for service", slog.String("service", svc.Name))

		for _, secret := range svc.Secrets {
			paths := []string{secret.Path}
			if secret.Recursive {
				paths, err = DiscoverSecrets(ctx, reader, secret.MountPoint, secret.Path)
				if err != nil {
					return nil, fmt.Errorf("service %q: %w", svc.Name, err)
				}
			}

			for _, path := range paths {
				slog.Debug("Monitoring secret", slog.String("service", svc.Name), slog.String("path", secret.MountPoint+"/"+path))
				m, err := NewSecretMonitor(reader, sink, plan.params(secret.MountPoint, path))
				if err != nil {
					return nil, fmt.Errorf("service %q: %w", svc.Name, err)
				}
				monitors = append(monitors, m)
			}
		}

		for _, entity := range svc.Entities {
			slog.Debug("Monitoring entity", slog.String("service", svc.Name), slog.String("entity", entity.Name))
			m, err := NewEntityMonitor(reader, sink, plan.params(entity.MountPoint, entity.ID), entity.Name)
			if err != nil {
				return nil, fmt.Errorf("service %q: %w", svc.Name, err)
			}
			monitors = append(monitors, m)
		}

		for _, approle := range svc.AppRoles {
			slog.Debug("Monitoring approle", slog.String("service", svc.Name), slog.String("approle", approle.Name))
			m, err := NewAppRoleMonitor(reader, sink, plan.params(approle.MountPoint, approle.ID), approle.Name)
			if err != nil {
				return nil, fmt.Errorf("service %q: %w", svc.Name, err)
			}
			monitors = append(monitors, m)
		}
	}

	return monitors, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p servicePlan) params(mountPoint, monitoredPath string) Params {
	return Params{
		MountPoint:    mountPoint,
		MonitoredPath: monitoredPath,
		Service:       p.service.Name,
		Labels:        p.labels,
		FieldNames:    p.fields,
	}
}
