/*
Expiration monitors.

SCOPE:
- One monitor per watched Vault object: a KV v2 secret, an identity entity or an AppRole issued entity
- Fetch the expiration metadata of that object and push it into the gauge pair of its kind

The gauge pair is shared by every monitor of a kind and its label keys are frozen by the first
monitor built for that kind. The factory guarantees every monitor of a kind carries the same keys.
*/

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/MatteoMori/vaultmonitor/pkg/expiration"
	"github.com/MatteoMori/vaultmonitor/pkg/shared"
)

// Kind identifies a monitor variant. Each kind owns one gauge pair.
type Kind string

const (
	KindSecret  Kind = "secret"
	KindEntity  Kind = "entity"
	KindAppRole Kind = "approle"
)

// RequestTimeout bounds every single upstream call.
const RequestTimeout = 60 * time.Second

var ErrNotFound = errors.New("not found in vault")

// Gauge is a labelled gauge family of a metric sink.
type Gauge interface {
	Set(labels map[string]string, value float64) error
}

// Sink hands out the gauge pair of a kind, creating it with labelKeys on first use.
type Sink interface {
	Gauges(kind Kind, labelKeys []string) (lastRenewal Gauge, expiry Gauge, err error)
}

// Reader is the subset of *vaultapi.Logical the monitors and the secret discovery need.
type Reader interface {
	ReadWithContext(ctx context.Context, path string) (*vaultapi.Secret, error)
	ListWithContext(ctx context.Context, path string) (*vaultapi.Secret, error)
}

type Monitor interface {
	Kind() Kind
	MountPoint() string
	MonitoredPath() string
	Service() string
	Labels() map[string]string
	FieldNames() shared.FieldNames
	FetchExpiration(ctx context.Context) (expiration.Record, error)
	// Update fetches the expiration data and sets both gauges. Fetch errors are returned to the caller.
	Update(ctx context.Context) error
}

// Params describe the identity of a monitor.
type Params struct {
	MountPoint    string
	MonitoredPath string
	Service       string
	Labels        map[string]string // Extra labels on top of monitored_path, mount_point and service
	FieldNames    shared.FieldNames
}

type base struct {
	kind          Kind
	mountPoint    string
	monitoredPath string
	service       string
	labels        map[string]string
	fields        shared.FieldNames
	reader        Reader

	lastRenewalGauge Gauge
	expirationGauge  Gauge
}

func newBase(kind Kind, reader Reader, sink Sink, p Params, entityName *string) (base, error) {
	labels, keys := buildLabels(p, entityName)

	lastRenewal, expiry, err := sink.Gauges(kind, keys)
	if err != nil {
		return base{}, fmt.Errorf("failed to get %s gauges: %w", kind, err)
	}

	return base{
		kind:             kind,
		mountPoint:       p.MountPoint,
		monitoredPath:    p.MonitoredPath,
		service:          p.Service,
		labels:           labels,
		fields:           p.FieldNames.Resolve(shared.FieldNames{}),
		reader:           reader,
		lastRenewalGauge: lastRenewal,
		expirationGauge:  expiry,
	}, nil
}

// buildLabels merges the identity labels with the caller labels and returns the ordered key list:
// identity keys first, then caller keys sorted, then entity_name. Caller labels never replace an identity label.
func buildLabels(p Params, entityName *string) (map[string]string, []string) {
	labels := map[string]string{
		shared.LabelMonitoredPath: p.MonitoredPath,
		shared.LabelMountPoint:    p.MountPoint,
		shared.LabelService:       p.Service,
	}
	keys := []string{shared.LabelMonitoredPath, shared.LabelMountPoint, shared.LabelService}

	extra := make([]string, 0, len(p.Labels))
	for k := range p.Labels {
		if shared.IsReservedLabel(k) {
			continue
		}
		extra = append(extra, k)
	}
	sort.Strings(extra)

	for _, k := range extra {
		labels[k] = p.Labels[k]
	}
	keys = append(keys, extra...)

	if entityName != nil {
		labels[shared.LabelEntityName] = *entityName
		keys = append(keys, shared.LabelEntityName)
	}

	return labels, keys
}

func (b *base) Kind() Kind                    { return b.kind }
func (b *base) MountPoint() string            { return b.mountPoint }
func (b *base) MonitoredPath() string         { return b.monitoredPath }
func (b *base) Service() string               { return b.service }
func (b *base) FieldNames() shared.FieldNames { return b.fields }

// Labels returns a copy of the label set of the monitor.
func (b *base) Labels() map[string]string {
	out := make(map[string]string, len(b.labels))
	for k, v := range b.labels {
		out[k] = v
	}
	return out
}

func (b *base) update(ctx context.Context, fetch func(context.Context) (expiration.Record, error)) error {
	record, err := fetch(ctx)
	if err != nil {
		return fmt.Errorf("%s monitor %s/%s: %w", b.kind, b.mountPoint, b.monitoredPath, err)
	}

	if err := b.lastRenewalGauge.Set(b.labels, record.LastRenewedEpochSeconds()); err != nil {
		return fmt.Errorf("%s monitor %s/%s: %w", b.kind, b.mountPoint, b.monitoredPath, err)
	}
	if err := b.expirationGauge.Set(b.labels, record.ExpiresEpochSeconds()); err != nil {
		return fmt.Errorf("%s monitor %s/%s: %w", b.kind, b.mountPoint, b.monitoredPath, err)
	}
	return nil
}

// readMetadata reads path and decodes the metadata map stored under field.
func (b *base) readMetadata(ctx context.Context, path, field string) (expiration.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	secret, err := b.reader.ReadWithContext(ctx, path)
	if err != nil {
		return expiration.Record{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return expiration.Record{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	return expiration.FromMetadata(stringMap(secret.Data[field]), b.fields), nil
}

// stringMap converts a decoded JSON object into string values. Anything that is not an object yields an empty map.
func stringMap(raw interface{}) map[string]string {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return map[string]string{}
	}

	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch typ := v.(type) {
		case nil:
		case string:
			out[k] = typ
		default:
			out[k] = fmt.Sprint(typ)
		}
	}
	return out
}
