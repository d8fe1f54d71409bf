/*
This is where we define the metrics exposed by the exporter.
*/

package prometheus

import (
	"github.com/MatteoMori/vaultmonitor/pkg/monitor"
	"github.com/prometheus/client_golang/prometheus"
)

/*
NOTES:
- Every monitor kind owns two GaugeVecs. Their label keys are only known once the first monitor
  of the kind is built, so they are created lazily by Registry.Gauges (see registry.go).
- Values are Unix timestamps in seconds.

METRICS Definition

 1. Last renewal, one family per kind:
    -> vault_secret_last_renewal_timestamp{monitored_path="billing/db", mount_point="secret", service="billing", team="core"} 1.6514849814e+09
    -> vault_entity_last_renewal_timestamp{..., entity_name="billing-bot"}
    -> vault_approle_secret_id_last_renewal_timestamp{..., entity_name="billing-role"}

 2. Expiration, one family per kind:
    -> vault_secret_expiration_timestamp{...} 1.6599521814e+09
    -> vault_entity_expiration_timestamp{...}
    -> vault_approle_secret_id_expiration_timestamp{...}

 3. Exporter self metrics:
    -> vault_monitor_configured_monitors 12
    -> vault_monitor_last_sweep_duration_seconds 0.42
    -> vault_monitor_sweep_errors_total 0
*/

type gaugeFamily struct {
	lastRenewal prometheus.GaugeOpts
	expiration  prometheus.GaugeOpts
}

var gaugeFamilies = map[monitor.Kind]gaugeFamily{
	monitor.KindSecret: {
		lastRenewal: prometheus.GaugeOpts{
			Name: "vault_secret_last_renewal_timestamp",
			Help: "Timestamp for when a secret was last updated.",
		},
		expiration: prometheus.GaugeOpts{
			Name: "vault_secret_expiration_timestamp",
			Help: "Timestamp for when a secret should expire.",
		},
	},
	monitor.KindEntity: {
		lastRenewal: prometheus.GaugeOpts{
			Name: "vault_entity_last_renewal_timestamp",
			Help: "Timestamp for when an entity's secrets were last updated.",
		},
		expiration: prometheus.GaugeOpts{
			Name: "vault_entity_expiration_timestamp",
			Help: "Timestamp for when an entity's secrets should be expired and rotated.",
		},
	},
	monitor.KindAppRole: {
		lastRenewal: prometheus.GaugeOpts{
			Name: "vault_approle_secret_id_last_renewal_timestamp",
			Help: "Timestamp for when an AppRole secret id was last updated.",
		},
		expiration: prometheus.GaugeOpts{
			Name: "vault_approle_secret_id_expiration_timestamp",
			Help: "Timestamp for when an AppRole secret id should expire.",
		},
	},
}

func newSelfMetrics() (configured prometheus.Gauge, sweepDuration prometheus.Gauge, sweepErrors prometheus.Counter) {
	configured = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vault_monitor",
		Name:      "configured_monitors",
		Help:      "Number of monitors built from the configuration.",
	})

	sweepDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vault_monitor",
		Name:      "last_sweep_duration_seconds",
		Help:      "Duration of the last sweep over all monitors.",
	})

	sweepErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vault_monitor",
		Name:      "sweep_errors_total",
		Help:      "Number of sweeps aborted by an upstream error.",
	})

	return configured, sweepDuration, sweepErrors
}
