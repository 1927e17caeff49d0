package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-erp/scholaris-erp/internal/outbox"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
	_ "github.com/scholaris-erp/scholaris-erp/testing"
)

type stubEventRepo struct {
	rows map[uuid.UUID]outbox.Event
}

func newStubEventRepo() *stubEventRepo {
	return &stubEventRepo{rows: map[uuid.UUID]outbox.Event{}}
}

func (r *stubEventRepo) Insert(ctx context.Context, e outbox.Event) (outbox.Event, error) {
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	r.rows[e.ID] = e
	return e, nil
}

func (r *stubEventRepo) GetByID(ctx context.Context, tenantID int64, id uuid.UUID) (outbox.Event, error) {
	e, ok := r.rows[id]
	if !ok || e.TenantID != tenantID {
		return outbox.Event{}, shared.ErrNotFound
	}
	return e, nil
}

func (r *stubEventRepo) List(ctx context.Context, tenantID int64, status outbox.Status, limit, offset int) ([]outbox.Event, error) {
	var out []outbox.Event
	for _, e := range r.rows {
		if e.TenantID == tenantID && (status == "" || e.Status == status) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *stubEventRepo) MarkSent(ctx context.Context, id uuid.UUID, protocol string, at time.Time) (bool, error) {
	e, ok := r.rows[id]
	if !ok || e.Status != outbox.StatusPending {
		return false, nil
	}
	e.Status = outbox.StatusSent
	e.Protocol = protocol
	e.SentAt = &at
	e.LastError = ""
	e.UpdatedAt = time.Now()
	r.rows[id] = e
	return true, nil
}

func (r *stubEventRepo) MarkError(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	e, ok := r.rows[id]
	if !ok || e.Status != outbox.StatusPending {
		return false, nil
	}
	e.Status = outbox.StatusError
	e.LastError = message
	e.Attempts++
	e.UpdatedAt = time.Now()
	r.rows[id] = e
	return true, nil
}

func (r *stubEventRepo) ResetToPending(ctx context.Context, tenantID int64, id uuid.UUID) (bool, error) {
	e, ok := r.rows[id]
	if !ok || e.TenantID != tenantID || e.Status != outbox.StatusError {
		return false, nil
	}
	e.Status = outbox.StatusPending
	e.UpdatedAt = time.Now()
	r.rows[id] = e
	return true, nil
}

func (r *stubEventRepo) Cancel(ctx context.Context, tenantID int64, id uuid.UUID, reason string) (bool, error) {
	e, ok := r.rows[id]
	if !ok || e.TenantID != tenantID {
		return false, nil
	}
	if e.Status != outbox.StatusPending && e.Status != outbox.StatusError {
		return false, nil
	}
	e.Status = outbox.StatusCanceled
	e.CancelReason = reason
	e.UpdatedAt = time.Now()
	r.rows[id] = e
	return true, nil
}

func (r *stubEventRepo) ListPendingIDs(ctx context.Context, tenantID int64, limit int) ([]uuid.UUID, error) {
	return r.idsByStatus(tenantID, outbox.StatusPending, limit), nil
}

func (r *stubEventRepo) ListErrorIDs(ctx context.Context, tenantID int64, limit int) ([]uuid.UUID, error) {
	return r.idsByStatus(tenantID, outbox.StatusError, limit), nil
}

func (r *stubEventRepo) idsByStatus(tenantID int64, status outbox.Status, limit int) []uuid.UUID {
	var ids []uuid.UUID
	for id, e := range r.rows {
		if e.TenantID == tenantID && e.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

func (r *stubEventRepo) TenantsWithPending(ctx context.Context) ([]int64, error) {
	return r.tenants(outbox.StatusPending), nil
}

func (r *stubEventRepo) TenantsWithErrors(ctx context.Context) ([]int64, error) {
	return r.tenants(outbox.StatusError), nil
}

func (r *stubEventRepo) tenants(status outbox.Status) []int64 {
	seen := map[int64]struct{}{}
	var ids []int64
	for _, e := range r.rows {
		if e.Status == status {
			if _, ok := seen[e.TenantID]; !ok {
				seen[e.TenantID] = struct{}{}
				ids = append(ids, e.TenantID)
			}
		}
	}
	return ids
}

func (r *stubEventRepo) CountByStatus(ctx context.Context, tenantID int64) (outbox.Stats, error) {
	var stats outbox.Stats
	for _, e := range r.rows {
		if e.TenantID != tenantID {
			continue
		}
		switch e.Status {
		case outbox.StatusPending:
			stats.Pending++
		case outbox.StatusSent:
			stats.Sent++
		case outbox.StatusError:
			stats.Error++
		case outbox.StatusCanceled:
			stats.Canceled++
		}
	}
	return stats, nil
}

type stubGateway struct {
	protocol string
	err      error
	calls    int
}

func (g *stubGateway) Deliver(ctx context.Context, event outbox.Event) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.protocol, nil
}

type stubAuditor struct {
	entries []shared.AuditEntry
}

func (a *stubAuditor) Record(ctx context.Context, entry shared.AuditEntry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func enabledConfig() outbox.IntegrationConfig {
	return outbox.IntegrationConfig{Enabled: true, Endpoint: "https://gov.example/api", Token: "secret"}
}

func seedEvent(repo *stubEventRepo, tenantID int64, status outbox.Status) uuid.UUID {
	id := uuid.New()
	repo.rows[id] = outbox.Event{
		ID: id, TenantID: tenantID, EventType: "enrollment.sync",
		Payload: json.RawMessage(`{"student":1}`), Status: status,
	}
	return id
}

func TestAttemptDeliverDisabledIntegration(t *testing.T) {
	repo := newStubEventRepo()
	gw := &stubGateway{protocol: "RCPT-1"}
	svc := outbox.NewService(repo, gw, outbox.IntegrationConfig{Enabled: false}, nil, nil)
	id := seedEvent(repo, 1, outbox.StatusPending)

	result, err := svc.AttemptDeliver(context.Background(), 1, id, nil)
	require.NoError(t, err)
	require.False(t, result.Delivered)
	require.Equal(t, "integration disabled", result.Reason)
	require.Zero(t, gw.calls, "gateway must not be called when disabled")

	row := repo.rows[id]
	require.Equal(t, outbox.StatusPending, row.Status, "row must stay untouched")
	require.Zero(t, row.Attempts)
}

func TestAttemptDeliverUnconfiguredIntegration(t *testing.T) {
	repo := newStubEventRepo()
	svc := outbox.NewService(repo, &stubGateway{}, outbox.IntegrationConfig{Enabled: true}, nil, nil)
	id := seedEvent(repo, 1, outbox.StatusPending)

	result, err := svc.AttemptDeliver(context.Background(), 1, id, nil)
	require.NoError(t, err)
	require.False(t, result.Delivered)
	require.Equal(t, outbox.StatusPending, repo.rows[id].Status)
}

func TestAttemptDeliverSuccess(t *testing.T) {
	repo := newStubEventRepo()
	gw := &stubGateway{protocol: "RCPT-42"}
	svc := outbox.NewService(repo, gw, enabledConfig(), nil, nil)
	sentAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return sentAt })
	id := seedEvent(repo, 1, outbox.StatusPending)

	result, err := svc.AttemptDeliver(context.Background(), 1, id, nil)
	require.NoError(t, err)
	require.True(t, result.Delivered)
	require.Equal(t, "RCPT-42", result.Protocol)

	row := repo.rows[id]
	require.Equal(t, outbox.StatusSent, row.Status)
	require.Equal(t, "RCPT-42", row.Protocol)
	require.NotNil(t, row.SentAt)
	require.Equal(t, sentAt, *row.SentAt)
}

func TestAttemptDeliverFailure(t *testing.T) {
	repo := newStubEventRepo()
	gw := &stubGateway{err: errors.New("connection refused")}
	svc := outbox.NewService(repo, gw, enabledConfig(), nil, nil)
	id := seedEvent(repo, 1, outbox.StatusPending)

	result, err := svc.AttemptDeliver(context.Background(), 1, id, nil)
	require.NoError(t, err, "delivery failure is a result, not an error")
	require.False(t, result.Delivered)

	row := repo.rows[id]
	require.Equal(t, outbox.StatusError, row.Status)
	require.Equal(t, 1, row.Attempts)
	require.Contains(t, row.LastError, "connection refused")

	// A second manual send resets and fails again: attempts keep growing.
	_, err = svc.Send(context.Background(), 1, id, nil)
	require.NoError(t, err)
	require.Equal(t, 2, repo.rows[id].Attempts)
}

func TestManualSendAuditsActingUser(t *testing.T) {
	repo := newStubEventRepo()
	audit := &stubAuditor{}
	svc := outbox.NewService(repo, &stubGateway{protocol: "RCPT-7"}, enabledConfig(), audit, nil)
	id := seedEvent(repo, 1, outbox.StatusError)
	actor := &shared.Identity{UserID: 42}

	result, err := svc.Send(context.Background(), 1, id, actor)
	require.NoError(t, err)
	require.True(t, result.Delivered)

	require.Len(t, audit.entries, 1)
	require.Equal(t, "outbox.sent", audit.entries[0].Action)
	require.Equal(t, int64(42), audit.entries[0].ActorID)
}

func TestSweepDeliveryAuditsSystemActor(t *testing.T) {
	repo := newStubEventRepo()
	audit := &stubAuditor{}
	svc := outbox.NewService(repo, &stubGateway{protocol: "RCPT-8"}, enabledConfig(), audit, nil)
	seedEvent(repo, 1, outbox.StatusPending)

	summary, err := svc.ProcessPending(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)

	require.Len(t, audit.entries, 1)
	require.Equal(t, shared.SystemActorID, audit.entries[0].ActorID)
}

func TestReprocessErrorsHonorsLimit(t *testing.T) {
	repo := newStubEventRepo()
	gw := &stubGateway{protocol: "RCPT-9"}
	svc := outbox.NewService(repo, gw, enabledConfig(), nil, nil)
	for i := 0; i < 5; i++ {
		seedEvent(repo, 1, outbox.StatusError)
	}

	summary, err := svc.ReprocessErrors(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Processed)
	require.Equal(t, summary.Processed, summary.Succeeded+summary.Failed)
	require.Equal(t, 2, summary.Succeeded)

	stats, err := svc.Stats(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Error)
	require.Equal(t, 2, stats.Sent)
}

func TestReprocessErrorsIsolatesFailures(t *testing.T) {
	repo := newStubEventRepo()
	gw := &stubGateway{err: errors.New("still down")}
	svc := outbox.NewService(repo, gw, enabledConfig(), nil, nil)
	for i := 0; i < 3; i++ {
		seedEvent(repo, 1, outbox.StatusError)
	}

	summary, err := svc.ReprocessErrors(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Processed)
	require.Equal(t, 3, summary.Failed)
	require.Equal(t, summary.Processed, summary.Succeeded+summary.Failed)
}

func TestCancelRules(t *testing.T) {
	repo := newStubEventRepo()
	svc := outbox.NewService(repo, &stubGateway{}, enabledConfig(), nil, nil)
	actor := &shared.Identity{UserID: 3}

	pending := seedEvent(repo, 1, outbox.StatusPending)
	canceled, err := svc.Cancel(context.Background(), 1, pending, actor, "duplicate record")
	require.NoError(t, err)
	require.Equal(t, outbox.StatusCanceled, canceled.Status)
	require.Equal(t, "duplicate record", canceled.CancelReason)

	sent := seedEvent(repo, 1, outbox.StatusSent)
	_, err = svc.Cancel(context.Background(), 1, sent, actor, "late cancel")
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	require.Equal(t, 400, de.Status)

	_, err = svc.Cancel(context.Background(), 1, canceled.ID, actor, "again")
	require.ErrorAs(t, err, &de)
	require.Equal(t, 400, de.Status)
}

func TestTenantIsolationOnEvents(t *testing.T) {
	repo := newStubEventRepo()
	svc := outbox.NewService(repo, &stubGateway{}, enabledConfig(), nil, nil)
	id := seedEvent(repo, 1, outbox.StatusPending)

	_, err := svc.Get(context.Background(), 2, id)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.AttemptDeliver(context.Background(), 2, id, nil)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestEnqueue(t *testing.T) {
	repo := newStubEventRepo()
	svc := outbox.NewService(repo, &stubGateway{}, outbox.IntegrationConfig{}, nil, nil)
	actor := &shared.Identity{UserID: 7}

	created, err := svc.Enqueue(context.Background(), 1, "enrollment.sync", json.RawMessage(`{"x":1}`), actor)
	require.NoError(t, err)
	require.Equal(t, outbox.StatusPending, created.Status)
	require.Equal(t, int64(7), created.CreatedBy)
	require.Equal(t, int64(1), created.TenantID)

	_, err = svc.Enqueue(context.Background(), 1, "  ", nil, actor)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	require.Equal(t, 400, de.Status)
}
