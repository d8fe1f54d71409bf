package expiration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	vaultapi "github.com/hashicorp/vault/api"
)

// Metadata fields managed by Vault itself. They must not be sent back on a metadata PUT.
var serverManagedFields = []string{"created_time", "current_version", "oldest_version", "updated_time", "versions"}

// MetadataWriter is the subset of *vaultapi.Logical used to update secret metadata.
type MetadataWriter interface {
	JSONMergePatch(ctx context.Context, path string, data map[string]interface{}) (*vaultapi.Secret, error)
	ReadWithContext(ctx context.Context, path string) (*vaultapi.Secret, error)
	WriteWithContext(ctx context.Context, path string, data map[string]interface{}) (*vaultapi.Secret, error)
}

// Set stores r in the custom metadata of the KV v2 secret mountPoint/secretPath.
// Vault releases without PATCH support answer 405, in that case the metadata is read,
// merged and written back as a whole.
func Set(ctx context.Context, w MetadataWriter, mountPoint, secretPath string, r Record) error {
	path := fmt.Sprintf("%s/metadata/%s", mountPoint, secretPath)
	custom := toInterfaceMap(r.Serialize())

	slog.Info("Updating expiration data for secret", slog.String("path", path))

	_, err := w.JSONMergePatch(ctx, path, map[string]interface{}{"custom_metadata": custom})
	if err == nil {
		return nil
	}

	var respErr *vaultapi.ResponseError
	if !errors.As(err, &respErr) || respErr.StatusCode != http.StatusMethodNotAllowed {
		return fmt.Errorf("failed to patch metadata of %s: %w", path, err)
	}

	slog.Warn("Received 405 when patching metadata, falling back to GET+PUT. "+
		"This indicates an older Vault release (<1.9), support for it will eventually be dropped",
		slog.String("path", path))

	return readMergeWrite(ctx, w, path, custom)
}

func readMergeWrite(ctx context.Context, w MetadataWriter, path string, custom map[string]interface{}) error {
	secret, err := w.ReadWithContext(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to read metadata of %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return fmt.Errorf("metadata of %s is empty", path)
	}

	metadata := make(map[string]interface{}, len(secret.Data))
	for k, v := range secret.Data {
		metadata[k] = v
	}

	// Vault returns null when no custom metadata was ever set.
	existing, _ := metadata["custom_metadata"].(map[string]interface{})
	merged := make(map[string]interface{}, len(existing)+len(custom))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range custom {
		merged[k] = v
	}
	metadata["custom_metadata"] = merged

	for _, field := range serverManagedFields {
		delete(metadata, field)
	}

	if _, err := w.WriteWithContext(ctx, path, metadata); err != nil {
		return fmt.Errorf("failed to write metadata of %s: %w", path, err)
	}
	return nil
}

func toInterfaceMap(in map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
