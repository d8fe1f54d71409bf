/*
Vault client construction.

SCOPE:
- Build the client used by the exporter from the vault section of the configuration
- Authenticate with AppRole, Kubernetes or a plain token
- Build the client used by the set-expiration command from flags and the user's environment
*/

package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
	"github.com/mitchellh/go-homedir"
	"k8s.io/client-go/rest"

	"github.com/MatteoMori/vaultmonitor/pkg/shared"
)

const requestTimeout = 60 * time.Second

var (
	ErrMissingAddress     = errors.New("no vault address configured")
	ErrMissingToken       = errors.New("no vault token found")
	ErrMissingCredentials = errors.New("missing credentials")
)

// NewClient returns an authenticated client. Address and namespace fall back to VAULT_ADDR and VAULT_NAMESPACE.
func NewClient(ctx context.Context, cfg shared.VaultConfig) (*vaultapi.Client, error) {
	client, err := newClient(cfg.Address)
	if err != nil {
		return nil, err
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = os.Getenv(vaultapi.EnvVaultNamespace)
	}
	if namespace == "" {
		slog.Info("No vault namespace configured, using the root namespace")
		client.ClearNamespace()
	} else {
		client.SetNamespace(namespace)
	}

	auth := cfg.Authentication
	if configured := countMethods(auth); configured > 1 {
		slog.Warn("More than one authentication method configured, using the first of approle, kubernetes, token",
			slog.Int("configured", configured))
	}

	switch {
	case auth.AppRole != nil:
		err = loginAppRole(ctx, client, auth.AppRole)
	case auth.Kubernetes != nil:
		err = loginKubernetes(ctx, client, auth.Kubernetes)
	default:
		err = useToken(client, auth.Token)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("Vault client ready", slog.String("address", client.Address()), slog.String("namespace", namespace))
	return client, nil
}

// NewUserClient returns a client authenticated with the token of a human operator.
// The token falls back to VAULT_TOKEN and then to ~/.vault-token.
func NewUserClient(address, namespace, token string) (*vaultapi.Client, error) {
	if address == "" {
		address = os.Getenv(vaultapi.EnvVaultAddress)
	}
	if address == "" {
		return nil, fmt.Errorf("%w: set --address or %s", ErrMissingAddress, vaultapi.EnvVaultAddress)
	}

	client, err := newClient(address)
	if err != nil {
		return nil, err
	}

	if namespace == "" {
		namespace = os.Getenv(vaultapi.EnvVaultNamespace)
	}
	if namespace != "" {
		client.SetNamespace(namespace)
	}

	if token == "" {
		token = os.Getenv(vaultapi.EnvVaultToken)
	}
	if token == "" {
		token, err = readTokenFile(shared.DefaultUserTokenFilePath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if token == "" {
		return nil, fmt.Errorf("%w: set --token, %s or log in with the vault CLI", ErrMissingToken, vaultapi.EnvVaultToken)
	}
	client.SetToken(token)

	return client, nil
}

func newClient(address string) (*vaultapi.Client, error) {
	config := vaultapi.DefaultConfig()
	if config.Error != nil {
		return nil, fmt.Errorf("failed to read vault environment: %w", config.Error)
	}
	if address != "" {
		config.Address = address
	}
	config.Timeout = requestTimeout
	config.MaxRetries = 0

	client, err := vaultapi.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	return client, nil
}

func countMethods(auth shared.AuthConfig) int {
	n := 0
	if auth.AppRole != nil {
		n++
	}
	if auth.Kubernetes != nil {
		n++
	}
	if auth.Token != nil {
		n++
	}
	return n
}

func loginAppRole(ctx context.Context, client *vaultapi.Client, cfg *shared.AppRoleAuth) error {
	roleID, err := credential("role_id", cfg.RoleID, cfg.RoleIDVariable, cfg.RoleIDFile)
	if err != nil {
		return err
	}
	secretID, err := credential("secret_id", cfg.SecretID, cfg.SecretIDVariable, cfg.SecretIDFile)
	if err != nil {
		return err
	}

	mount := cfg.MountPoint
	if mount == "" {
		mount = shared.DefaultApproleMount
	}

	slog.Debug("Logging in to vault with approle", slog.String("mount_point", mount))
	return login(ctx, client, mount, map[string]interface{}{
		"role_id":   roleID,
		"secret_id": secretID,
	})
}

func loginKubernetes(ctx context.Context, client *vaultapi.Client, cfg *shared.KubernetesAuth) error {
	mount := cfg.MountPoint
	if mount == "" {
		mount = shared.DefaultKubernetesMount
	}
	role := cfg.Role
	if role == "" {
		role = shared.DefaultKubernetesRole
	}
	tokenFile := cfg.TokenFile
	if tokenFile == "" {
		tokenFile = serviceAccountTokenFile()
	}

	jwt, err := readTokenFile(tokenFile)
	if err != nil {
		return fmt.Errorf("failed to read service account token: %w", err)
	}
	if jwt == "" {
		return fmt.Errorf("%w: service account token %s is empty", ErrMissingCredentials, tokenFile)
	}

	slog.Debug("Logging in to vault with kubernetes", slog.String("mount_point", mount), slog.String("role", role))
	return login(ctx, client, mount, map[string]interface{}{
		"role": role,
		"jwt":  jwt,
	})
}

// serviceAccountTokenFile prefers the token file of the in-cluster configuration.
func serviceAccountTokenFile() string {
	if config, err := rest.InClusterConfig(); err == nil && config.BearerTokenFile != "" {
		return config.BearerTokenFile
	}
	return shared.DefaultServiceTokenPath
}

func useToken(client *vaultapi.Client, cfg *shared.TokenAuth) error {
	if cfg != nil {
		if cfg.TokenVarName != "" {
			if token := os.Getenv(cfg.TokenVarName); token != "" {
				client.SetToken(token)
				return nil
			}
			slog.Warn("Token variable is empty", slog.String("variable", cfg.TokenVarName))
		}
		if cfg.TokenFile != "" {
			token, err := readTokenFile(cfg.TokenFile)
			if err != nil {
				return fmt.Errorf("failed to read token file: %w", err)
			}
			if token != "" {
				client.SetToken(token)
				return nil
			}
		}
	}

	// Client defaults: VAULT_TOKEN was picked up by the constructor.
	if client.Token() != "" {
		return nil
	}
	token, err := readTokenFile(shared.DefaultUserTokenFilePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if token == "" {
		return ErrMissingToken
	}
	client.SetToken(token)
	return nil
}

func login(ctx context.Context, client *vaultapi.Client, mount string, data map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	path := fmt.Sprintf("auth/%s/login", strings.Trim(mount, "/"))
	secret, err := client.Logical().WriteWithContext(ctx, path, data)
	if err != nil {
		return fmt.Errorf("failed to log in on %s: %w", path, err)
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return fmt.Errorf("login on %s returned no token", path)
	}

	client.SetToken(secret.Auth.ClientToken)
	return nil
}

// credential picks the literal value, else the environment variable, else the file.
func credential(name, literal, variable, file string) (string, error) {
	if literal != "" {
		return literal, nil
	}
	if variable != "" {
		if v := os.Getenv(variable); v != "" {
			return v, nil
		}
	}
	if file != "" {
		v, err := readTokenFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", name, err)
		}
		if v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrMissingCredentials, name)
}

func readTokenFile(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", path, err)
	}
	b, err := os.ReadFile(expanded)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
