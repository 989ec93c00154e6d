package dns

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoneup/zoneup/internal/logging"
	"github.com/zoneup/zoneup/internal/server/models"
)

type fakeProvider struct {
	records   map[string]string // "name/type" -> value
	commits   [][]Change
	existsErr error
	commitErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{records: make(map[string]string)}
}

func key(name string, rtype RecordType) string { return name + "/" + string(rtype) }

func (p *fakeProvider) Exists(ctx context.Context, name string, rtype RecordType) (string, bool, error) {
	if p.existsErr != nil {
		return "", false, p.existsErr
	}
	v, ok := p.records[key(name, rtype)]
	return v, ok, nil
}

func (p *fakeProvider) Commit(ctx context.Context, changes []Change) error {
	if p.commitErr != nil {
		return p.commitErr
	}
	p.commits = append(p.commits, changes)
	for _, c := range changes {
		if c.Op == OpDelete {
			delete(p.records, key(c.Name, c.Type))
		} else {
			p.records[key(c.Name, c.Type)] = c.Value
		}
	}
	return nil
}

func testLogger() logging.Logger {
	return logging.NewSlog(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func testDomain(services ...models.Service) *models.Domain {
	return &models.Domain{
		ID:         "d-1",
		UserDomain: "alice",
		IP:         "10.0.0.5",
		Services:   services,
	}
}

func webService() models.Service {
	return models.Service{Name: "web", Protocol: "tcp", Type: "_http._tcp", Port: 8080}
}

func sshService() models.Service {
	return models.Service{Name: "ssh", Protocol: "tcp", Type: "_ssh._tcp", Port: 22}
}

func TestPublish_FullRecordSet(t *testing.T) {
	p := newFakeProvider()
	r := NewReconciler(p, "root.com", time.Second, testLogger())

	d := testDomain(webService())
	require.NoError(t, r.Publish(context.Background(), d))

	require.Len(t, p.commits, 1)
	assert.Equal(t, []Change{
		{Op: OpUpsert, Type: TypeCNAME, Name: "alice.root.com", Value: "root.com"},
		{Op: OpUpsert, Type: TypeA, Name: "device.alice.root.com", Value: "10.0.0.5"},
		{Op: OpUpsert, Type: TypeSRV, Name: "_http._tcp.alice.root.com", Value: "0 0 8080 device.alice.root.com"},
	}, p.commits[0])
}

func TestReconcile_IdenticalStateIsNoOp(t *testing.T) {
	p := newFakeProvider()
	r := NewReconciler(p, "root.com", time.Second, testLogger())

	d := testDomain(webService())
	require.NoError(t, r.Publish(context.Background(), d))
	require.Len(t, p.commits, 1)

	// Second pass with identical declared state: zero provider calls.
	require.NoError(t, r.Reconcile(context.Background(), d, d))
	assert.Len(t, p.commits, 1)
}

func TestReconcile_ExactDiff(t *testing.T) {
	p := newFakeProvider()
	r := NewReconciler(p, "root.com", time.Second, testLogger())

	oldDomain := testDomain(webService())
	require.NoError(t, r.Publish(context.Background(), oldDomain))

	// Remove "web", add "ssh". IP unchanged, so A and CNAME stay untouched.
	newDomain := testDomain(sshService())
	require.NoError(t, r.Reconcile(context.Background(), oldDomain, newDomain))

	require.Len(t, p.commits, 2)
	assert.Equal(t, []Change{
		{Op: OpDelete, Type: TypeSRV, Name: "_http._tcp.alice.root.com", Value: "0 0 8080 device.alice.root.com"},
		{Op: OpUpsert, Type: TypeSRV, Name: "_ssh._tcp.alice.root.com", Value: "0 0 22 device.alice.root.com"},
	}, p.commits[1])
}

func TestReconcile_DeletesBeforeUpserts(t *testing.T) {
	p := newFakeProvider()
	r := NewReconciler(p, "root.com", time.Second, testLogger())

	oldDomain := testDomain(webService())
	require.NoError(t, r.Publish(context.Background(), oldDomain))

	newDomain := testDomain(sshService())
	newDomain.IP = "10.0.0.6"
	require.NoError(t, r.Reconcile(context.Background(), oldDomain, newDomain))

	batch := p.commits[len(p.commits)-1]
	lastDelete, firstUpsert := -1, len(batch)
	for i, c := range batch {
		if c.Op == OpDelete && i > lastDelete {
			lastDelete = i
		}
		if c.Op == OpUpsert && i < firstUpsert {
			firstUpsert = i
		}
	}
	assert.Less(t, lastDelete, firstUpsert, "deletes must precede upserts in the batch")
}

func TestReconcile_AccessIPChange(t *testing.T) {
	p := newFakeProvider()
	r := NewReconciler(p, "root.com", time.Second, testLogger())

	oldDomain := testDomain(webService())
	require.NoError(t, r.Publish(context.Background(), oldDomain))

	newDomain := testDomain(webService())
	newDomain.IP = "10.0.0.9"
	require.NoError(t, r.Reconcile(context.Background(), oldDomain, newDomain))

	require.Len(t, p.commits, 2)
	assert.Equal(t, []Change{
		{Op: OpUpsert, Type: TypeA, Name: "device.alice.root.com", Value: "10.0.0.9"},
	}, p.commits[1])
}

func TestReconcile_MapLocalAddressFlip(t *testing.T) {
	p := newFakeProvider()
	r := NewReconciler(p, "root.com", time.Second, testLogger())

	svc := webService()
	svc.LocalPort = 18080

	oldDomain := testDomain(svc)
	oldDomain.LocalIP = "192.168.1.20"
	require.NoError(t, r.Publish(context.Background(), oldDomain))

	// Flipping map_local_address moves the A record to the local IP and
	// republishes the SRV with the local port.
	newDomain := testDomain(svc)
	newDomain.LocalIP = "192.168.1.20"
	newDomain.MapLocalAddress = true
	require.NoError(t, r.Reconcile(context.Background(), oldDomain, newDomain))

	require.Len(t, p.commits, 2)
	assert.Equal(t, []Change{
		{Op: OpUpsert, Type: TypeA, Name: "device.alice.root.com", Value: "192.168.1.20"},
		{Op: OpUpsert, Type: TypeSRV, Name: "_http._tcp.alice.root.com", Value: "0 0 18080 device.alice.root.com"},
	}, p.commits[1])
}

func TestReconcile_SkipsDeleteForDriftedRecord(t *testing.T) {
	p := newFakeProvider()
	r := NewReconciler(p, "root.com", time.Second, testLogger())

	oldDomain := testDomain(webService())
	// Not published: the provider has no SRV record even though the store
	// says there was one.
	newDomain := testDomain()
	require.NoError(t, r.Reconcile(context.Background(), oldDomain, newDomain))

	assert.Empty(t, p.commits, "nothing to delete, no batch expected")
}

func TestReconcile_CommitFailure(t *testing.T) {
	p := newFakeProvider()
	r := NewReconciler(p, "root.com", time.Second, testLogger())

	oldDomain := testDomain(webService())
	require.NoError(t, r.Publish(context.Background(), oldDomain))
	p.commitErr = errors.New("provider down")

	newDomain := testDomain(sshService())
	err := r.Reconcile(context.Background(), oldDomain, newDomain)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.False(t, perr.Unknown)
	assert.Len(t, perr.Added, 1)
	assert.Len(t, perr.Removed, 1)
}

func TestReconcile_TimeoutIsUnknownOutcome(t *testing.T) {
	p := newFakeProvider()
	r := NewReconciler(p, "root.com", time.Second, testLogger())

	oldDomain := testDomain(webService())
	require.NoError(t, r.Publish(context.Background(), oldDomain))
	p.commitErr = context.DeadlineExceeded

	newDomain := testDomain(sshService())
	err := r.Reconcile(context.Background(), oldDomain, newDomain)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.Unknown)
}

// slowProvider stalls every commit until the operation context gives up.
type slowProvider struct {
	*fakeProvider
}

func (p *slowProvider) Commit(ctx context.Context, changes []Change) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestPublish_HungProviderIsCutOff(t *testing.T) {
	p := &slowProvider{fakeProvider: newFakeProvider()}
	r := NewReconciler(p, "root.com", 10*time.Millisecond, testLogger())

	done := make(chan error, 1)
	go func() { done <- r.Publish(context.Background(), testDomain(webService())) }()

	select {
	case err := <-done:
		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
		assert.True(t, perr.Unknown)
	case <-time.After(5 * time.Second):
		t.Fatal("publish was not bounded by the reconciler timeout")
	}
}

func TestTeardown_RemovesEverything(t *testing.T) {
	p := newFakeProvider()
	r := NewReconciler(p, "root.com", time.Second, testLogger())

	d := testDomain(webService(), sshService())
	require.NoError(t, r.Publish(context.Background(), d))
	require.NoError(t, r.Teardown(context.Background(), d))

	assert.Empty(t, p.records)
	require.Len(t, p.commits, 2)
	assert.Len(t, p.commits[1], 4) // CNAME, A, two SRVs
}

func TestTeardown_ToleratesAbsentRecords(t *testing.T) {
	p := newFakeProvider()
	r := NewReconciler(p, "root.com", time.Second, testLogger())

	// Never published: teardown should not issue a single delete.
	d := testDomain(webService())
	require.NoError(t, r.Teardown(context.Background(), d))
	assert.Empty(t, p.commits)
}

func TestTeardown_ExistsFailure(t *testing.T) {
	p := newFakeProvider()
	p.existsErr = errors.New("listing failed")
	r := NewReconciler(p, "root.com", time.Second, testLogger())

	var perr *ProviderError
	err := r.Teardown(context.Background(), testDomain())
	require.ErrorAs(t, err, &perr)
}

func TestDiffServices(t *testing.T) {
	web := webService()
	ssh := sshService()
	webMoved := webService()
	webMoved.Port = 9090

	tests := []struct {
		name                       string
		oldSvcs, newSvcs           []models.Service
		wantAdd, wantDel, wantChng int
	}{
		{"both empty", nil, nil, 0, 0, 0},
		{"all added", nil, []models.Service{web, ssh}, 2, 0, 0},
		{"all removed", []models.Service{web, ssh}, nil, 0, 2, 0},
		{"swap", []models.Service{web}, []models.Service{ssh}, 1, 1, 0},
		{"identical", []models.Service{web}, []models.Service{web}, 0, 0, 0},
		{"port moved", []models.Service{web}, []models.Service{webMoved}, 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, removed, changed := diffServices(testDomain(tt.oldSvcs...), testDomain(tt.newSvcs...))
			assert.Len(t, added, tt.wantAdd)
			assert.Len(t, removed, tt.wantDel)
			assert.Len(t, changed, tt.wantChng)
		})
	}
}
