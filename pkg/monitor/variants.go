package monitor

import (
	"context"
	"fmt"

	"github.com/MatteoMori/vaultmonitor/pkg/expiration"
)

// Compile-time checks to verify the variants implement the interface.
var (
	_ Monitor = (*SecretMonitor)(nil)
	_ Monitor = (*EntityMonitor)(nil)
	_ Monitor = (*AppRoleMonitor)(nil)
)

// SecretMonitor watches the custom metadata of a KV v2 secret.
type SecretMonitor struct {
	base
}

func NewSecretMonitor(reader Reader, sink Sink, p Params) (*SecretMonitor, error) {
	b, err := newBase(KindSecret, reader, sink, p, nil)
	if err != nil {
		return nil, err
	}
	return &SecretMonitor{base: b}, nil
}

// FetchExpiration reads {mount_point}/metadata/{monitored_path}.
func (m *SecretMonitor) FetchExpiration(ctx context.Context) (expiration.Record, error) {
	path := fmt.Sprintf("%s/metadata/%s", m.mountPoint, m.monitoredPath)
	return m.readMetadata(ctx, path, "custom_metadata")
}

func (m *SecretMonitor) Update(ctx context.Context) error {
	return m.update(ctx, m.FetchExpiration)
}

// EntityMonitor watches the metadata of an identity entity. MonitoredPath is the entity id.
type EntityMonitor struct {
	base
	name string
}

func NewEntityMonitor(reader Reader, sink Sink, p Params, name string) (*EntityMonitor, error) {
	b, err := newBase(KindEntity, reader, sink, p, &name)
	if err != nil {
		return nil, err
	}
	return &EntityMonitor{base: b, name: name}, nil
}

func (m *EntityMonitor) Name() string { return m.name }

func (m *EntityMonitor) FetchExpiration(ctx context.Context) (expiration.Record, error) {
	return m.readMetadata(ctx, entityPath(m.monitoredPath), "metadata")
}

func (m *EntityMonitor) Update(ctx context.Context) error {
	return m.update(ctx, m.FetchExpiration)
}

// AppRoleMonitor watches the secret id rotation of an AppRole through the entity it is bound to.
type AppRoleMonitor struct {
	base
	name string
}

func NewAppRoleMonitor(reader Reader, sink Sink, p Params, name string) (*AppRoleMonitor, error) {
	b, err := newBase(KindAppRole, reader, sink, p, &name)
	if err != nil {
		return nil, err
	}
	return &AppRoleMonitor{base: b, name: name}, nil
}

func (m *AppRoleMonitor) Name() string { return m.name }

func (m *AppRoleMonitor) FetchExpiration(ctx context.Context) (expiration.Record, error) {
	return m.readMetadata(ctx, entityPath(m.monitoredPath), "metadata")
}

func (m *AppRoleMonitor) Update(ctx context.Context) error {
	return m.update(ctx, m.FetchExpiration)
}

func entityPath(id string) string {
	return "identity/entity/id/" + id
}
