package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type pendingKey struct {
	path string
	dir  bool
}

// DiscoverSecrets lists every secret below root on the KV v2 mount, depth first and in listing order.
// Keys ending in "/" are folders and are walked further, other keys are returned with their full path.
// The walk uses an explicit stack; it trusts Vault to return an acyclic hierarchy.
func DiscoverSecrets(ctx context.Context, reader Reader, mountPoint, root string) ([]string, error) {
	var secrets []string
	stack := []pendingKey{{path: root, dir: true}}

	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !next.dir {
			secrets = append(secrets, next.path)
			continue
		}

		keys, err := listKeys(ctx, reader, mountPoint, next.path)
		if err != nil {
			return nil, err
		}

		// Push in reverse so the listing order is kept when popping.
		for i := len(keys) - 1; i >= 0; i-- {
			key := keys[i]
			dir := strings.HasSuffix(key, "/")
			stack = append(stack, pendingKey{
				path: joinPath(next.path, strings.TrimSuffix(key, "/")),
				dir:  dir,
			})
		}
	}

	slog.Debug("Discovered secrets", slog.String("mount_point", mountPoint), slog.String("root", root), slog.Int("count", len(secrets)))
	return secrets, nil
}

func listKeys(ctx context.Context, reader Reader, mountPoint, path string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	listPath := fmt.Sprintf("%s/metadata/%s", mountPoint, path)
	secret, err := reader.ListWithContext(ctx, listPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", listPath, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, listPath)
	}

	raw, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("listing of %s has no keys", listPath)
	}

	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		key, ok := k.(string)
		if !ok || key == "" {
			return nil, fmt.Errorf("listing of %s returned an invalid key %v", listPath, k)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func joinPath(base, key string) string {
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		return key
	}
	return base + "/" + key
}
