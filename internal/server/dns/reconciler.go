package dns

import (
	"context"
	"time"

	"github.com/zoneup/zoneup/internal/logging"
	"github.com/zoneup/zoneup/internal/server/models"
)

// Reconciler keeps one zone's records consistent with the domains' declared
// state. It computes minimal change sets and submits each as a single
// provider batch; a reconcile against unchanged state performs no provider
// call at all.
type Reconciler struct {
	provider Provider
	root     string
	timeout  time.Duration
	log      logging.Logger
}

// NewReconciler constructs a Reconciler publishing under the given root
// domain. Every Publish, Reconcile and Teardown call runs under the given
// timeout; zero disables the bound.
func NewReconciler(provider Provider, rootDomain string, timeout time.Duration, log logging.Logger) *Reconciler {
	return &Reconciler{
		provider: provider,
		root:     rootDomain,
		timeout:  timeout,
		log:      log.With("component", "dns-reconciler"),
	}
}

// opCtx bounds a single reconciler operation, existence lookups included,
// so a hung provider cannot block the caller indefinitely.
func (r *Reconciler) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Publish pushes a domain's full record set on first publication: the
// redirector CNAME, the device A record and one SRV per service, in that
// order, as one batch.
func (r *Reconciler) Publish(ctx context.Context, d *models.Domain) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	changes := []Change{
		{Op: OpUpsert, Type: TypeCNAME, Name: LabelFQDN(d.UserDomain, r.root), Value: r.root},
		{Op: OpUpsert, Type: TypeA, Name: DeviceFQDN(d.UserDomain, r.root), Value: d.AccessIP()},
	}
	for _, svc := range d.Services {
		changes = append(changes, Change{
			Op:    OpUpsert,
			Type:  TypeSRV,
			Name:  ServiceFQDN(svc, d.UserDomain, r.root),
			Value: srvValue(d, svc, r.root),
		})
	}
	return r.commit(ctx, changes)
}

// Reconcile diffs the previously published state against the newly declared
// one and applies only the difference: SRV deletions for services that
// disappeared, an A upsert if the access IP moved, SRV upserts for services
// that appeared or whose published endpoint changed. Deletes are ordered
// before upserts inside the batch. Identical states are a strict no-op.
func (r *Reconciler) Reconcile(ctx context.Context, oldDomain, newDomain *models.Domain) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	added, removed, changed := diffServices(oldDomain, newDomain)

	var changes []Change
	for _, svc := range removed {
		name := ServiceFQDN(svc, oldDomain.UserDomain, r.root)
		// The provider may have drifted; only delete what is physically there.
		value, ok, err := r.provider.Exists(ctx, name, TypeSRV)
		if err != nil {
			return newProviderError(err, nil, changes)
		}
		if !ok {
			r.log.Warn(ctx, "record already absent at provider", "name", name)
			continue
		}
		changes = append(changes, Change{Op: OpDelete, Type: TypeSRV, Name: name, Value: value})
	}

	if newDomain.AccessIP() != oldDomain.AccessIP() {
		changes = append(changes, Change{
			Op:    OpUpsert,
			Type:  TypeA,
			Name:  DeviceFQDN(newDomain.UserDomain, r.root),
			Value: newDomain.AccessIP(),
		})
	}

	for _, svc := range append(added, changed...) {
		changes = append(changes, Change{
			Op:    OpUpsert,
			Type:  TypeSRV,
			Name:  ServiceFQDN(svc, newDomain.UserDomain, r.root),
			Value: srvValue(newDomain, svc, r.root),
		})
	}

	if len(changes) == 0 {
		return nil
	}
	return r.commit(ctx, changes)
}

// Teardown removes every record the domain may have published: the CNAME,
// the A record and all service SRVs, batched as one change set. Records
// already absent at the provider are skipped, so tearing down a half-built
// domain is safe.
func (r *Reconciler) Teardown(ctx context.Context, d *models.Domain) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	type candidate struct {
		name  string
		rtype RecordType
	}
	candidates := []candidate{
		{LabelFQDN(d.UserDomain, r.root), TypeCNAME},
		{DeviceFQDN(d.UserDomain, r.root), TypeA},
	}
	for _, svc := range d.Services {
		candidates = append(candidates, candidate{ServiceFQDN(svc, d.UserDomain, r.root), TypeSRV})
	}

	var changes []Change
	for _, c := range candidates {
		value, ok, err := r.provider.Exists(ctx, c.name, c.rtype)
		if err != nil {
			return newProviderError(err, nil, changes)
		}
		if !ok {
			continue
		}
		changes = append(changes, Change{Op: OpDelete, Type: c.rtype, Name: c.name, Value: value})
	}

	if len(changes) == 0 {
		return nil
	}
	return r.commit(ctx, changes)
}

func (r *Reconciler) commit(ctx context.Context, changes []Change) error {
	if err := r.provider.Commit(ctx, changes); err != nil {
		var added, removed []Change
		for _, c := range changes {
			if c.Op == OpDelete {
				removed = append(removed, c)
			} else {
				added = append(added, c)
			}
		}
		perr := newProviderError(err, added, removed)
		r.log.Error(ctx, "dns change batch failed",
			"error", err, "upserts", len(added), "deletes", len(removed), "unknown", perr.Unknown)
		return perr
	}
	r.log.Info(ctx, "dns change batch committed", "changes", len(changes))
	return nil
}

// diffServices splits the new service set against the old one by
// (name, type) identity. A service present on both sides lands in changed
// when the record it would publish differs (port or address policy moved).
func diffServices(oldDomain, newDomain *models.Domain) (added, removed, changed []models.Service) {
	oldByKey := make(map[models.ServiceKey]models.Service, len(oldDomain.Services))
	for _, svc := range oldDomain.Services {
		oldByKey[svc.Key()] = svc
	}
	newKeys := make(map[models.ServiceKey]struct{}, len(newDomain.Services))

	for _, svc := range newDomain.Services {
		newKeys[svc.Key()] = struct{}{}
		prev, ok := oldByKey[svc.Key()]
		if !ok {
			added = append(added, svc)
			continue
		}
		if ServicePort(newDomain, svc) != ServicePort(oldDomain, prev) {
			changed = append(changed, svc)
		}
	}
	for _, svc := range oldDomain.Services {
		if _, ok := newKeys[svc.Key()]; !ok {
			removed = append(removed, svc)
		}
	}
	return added, removed, changed
}
