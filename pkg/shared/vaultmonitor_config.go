package shared

// Defaults applied when the configuration does not say otherwise.
const (
	DefaultPort              = 9935
	DefaultRefreshInterval   = 30 // seconds
	DefaultLastRenewalField  = "last_renewal_timestamp"
	DefaultExpirationField   = "expiration_timestamp"
	DefaultApproleMount      = "approle"
	DefaultKubernetesMount   = "kubernetes"
	DefaultKubernetesRole    = "vape"
	DefaultServiceTokenPath  = "/var/run/secrets/kubernetes.io/serviceaccount/token"
	DefaultUserTokenFilePath = "~/.vault-token"
)

type Config struct {
	LogLevel             string           `mapstructure:"log_level"`             // DEBUG, INFO, WARNING or ERROR
	Port                 int              `mapstructure:"port"`                  // Port for the Prometheus metrics endpoint
	RefreshInterval      int              `mapstructure:"refresh_interval"`      // Seconds between two sweeps over the monitors
	Vault                VaultConfig      `mapstructure:"vault"`                 // How to reach and authenticate against Vault
	ExpirationMonitoring MonitoringConfig `mapstructure:"expiration_monitoring"` // What to monitor
}

// VaultConfig holds the connection settings. Empty Address / Namespace fall back to VAULT_ADDR / VAULT_NAMESPACE.
type VaultConfig struct {
	Address        string     `mapstructure:"address"`
	Namespace      string     `mapstructure:"namespace"`
	Authentication AuthConfig `mapstructure:"authentication"`
}

// AuthConfig selects one authentication method. Precedence is AppRole, then Kubernetes, then Token.
type AuthConfig struct {
	Token      *TokenAuth      `mapstructure:"token"`
	AppRole    *AppRoleAuth    `mapstructure:"approle"`
	Kubernetes *KubernetesAuth `mapstructure:"kubernetes"`
}

type TokenAuth struct {
	TokenVarName string `mapstructure:"token_var_name"` // Environment variable holding the token
	TokenFile    string `mapstructure:"token_file"`     // File holding the token, "~" is expanded
}

// AppRoleAuth takes each credential from the literal value, else the named variable, else the file.
type AppRoleAuth struct {
	MountPoint       string `mapstructure:"mount_point"`
	RoleID           string `mapstructure:"role_id"`
	RoleIDVariable   string `mapstructure:"role_id_variable"`
	RoleIDFile       string `mapstructure:"role_id_file"`
	SecretID         string `mapstructure:"secret_id"`
	SecretIDVariable string `mapstructure:"secret_id_variable"`
	SecretIDFile     string `mapstructure:"secret_id_file"`
}

type KubernetesAuth struct {
	MountPoint string `mapstructure:"mount_point"`
	Role       string `mapstructure:"role"`
	TokenFile  string `mapstructure:"token_file"` // Service account JWT
}

// FieldNames are the custom-metadata keys holding the two timestamps.
type FieldNames struct {
	LastRenewal string `mapstructure:"last_renewal_timestamp"`
	Expiration  string `mapstructure:"expiration_timestamp"`
}

// MonitoringConfig is the declarative input of the monitor factory.
type MonitoringConfig struct {
	DefaultLabels     map[string]string `mapstructure:"prometheus_labels"`   // Defines the global label-key set
	DefaultFieldNames FieldNames        `mapstructure:"metadata_fieldnames"` // Fallback for every service
	Services          []ServiceConfig   `mapstructure:"services"`
}

type ServiceConfig struct {
	Name       string            `mapstructure:"name"`
	Labels     map[string]string `mapstructure:"prometheus_labels"` // Overrides, keys must exist in DefaultLabels
	FieldNames FieldNames        `mapstructure:"metadata_fieldnames"`
	Secrets    []SecretTarget    `mapstructure:"secrets"`
	Entities   []EntityTarget    `mapstructure:"entities"`
	AppRoles   []EntityTarget    `mapstructure:"approles"`
}

type SecretTarget struct {
	MountPoint string `mapstructure:"mount_point"`
	Path       string `mapstructure:"path"`
	Recursive  bool   `mapstructure:"recursive"` // Monitor every secret below Path instead of Path itself
}

// EntityTarget points at an identity entity. AppRole secret ids are tracked through the entity they issue.
type EntityTarget struct {
	MountPoint string `mapstructure:"mount_point"`
	ID         string `mapstructure:"id"`
	Name       string `mapstructure:"name"`
}

// Resolve returns the field names to use, falling back per field to fallback and then to the literal defaults.
func (f FieldNames) Resolve(fallback FieldNames) FieldNames {
	out := f
	if out.LastRenewal == "" {
		out.LastRenewal = fallback.LastRenewal
	}
	if out.LastRenewal == "" {
		out.LastRenewal = DefaultLastRenewalField
	}
	if out.Expiration == "" {
		out.Expiration = fallback.Expiration
	}
	if out.Expiration == "" {
		out.Expiration = DefaultExpirationField
	}
	return out
}
