package sqlstore_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/goliatone/go-federation/core"
	federationmigrations "github.com/goliatone/go-federation/migrations"
	sqlstore "github.com/goliatone/go-federation/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-federation-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{"federation_delivery_events", "federation_delivery_items"} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master: %v", err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestEventStore_EnforcesSingleOpenEventPerStatus(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	events := factory.EventStore()

	first, err := events.Create(ctx, core.DeliveryEvent{
		StatusID: "status_1",
		UserID:   "usr_1",
		Type:     core.ActivityTypeCreate,
	})
	if err != nil {
		t.Fatalf("create first event: %v", err)
	}
	if first.Result != core.DeliveryResultPending {
		t.Fatalf("expected pending result, got %q", first.Result)
	}

	if _, err := events.Create(ctx, core.DeliveryEvent{
		StatusID: "status_1",
		UserID:   "usr_1",
		Type:     core.ActivityTypeUpdate,
	}); !errors.Is(err, core.ErrOpenEventExists) {
		t.Fatalf("expected open event conflict, got %v", err)
	}

	first.Result = core.DeliveryResultSuccess
	first.Attempts = 1
	if _, err := events.Update(ctx, first); err != nil {
		t.Fatalf("close first event: %v", err)
	}

	second, err := events.Create(ctx, core.DeliveryEvent{
		StatusID: "status_1",
		UserID:   "usr_1",
		Type:     core.ActivityTypeUpdate,
	})
	if err != nil {
		t.Fatalf("create event after close: %v", err)
	}

	open, found, err := events.GetOpenByStatus(ctx, "status_1")
	if err != nil {
		t.Fatalf("get open by status: %v", err)
	}
	if !found || open.ID != second.ID {
		t.Fatalf("expected second event to be the open one, found=%v id=%q", found, open.ID)
	}

	page, err := events.ListByStatus(ctx, "status_1", 1, 10)
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if page.Total != 2 || len(page.Events) != 2 {
		t.Fatalf("expected 2 events, got total=%d len=%d", page.Total, len(page.Events))
	}
}

func TestEventStore_GetMissingReturnsNotFound(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	if _, err := factory.EventStore().Get(context.Background(), "missing"); !errors.Is(err, core.ErrEventNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestItemStore_DeduplicatesURLsPerEvent(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	event := mustCreateEvent(t, factory, "status_dedup", "usr_1")
	items := factory.ItemStore()

	created, err := items.CreateBatch(ctx, event.ID, []string{
		"https://a.example/inbox",
		"https://b.example/inbox",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 items, got %d", len(created))
	}

	if _, err := items.CreateBatch(ctx, event.ID, []string{
		"https://a.example/inbox",
	}, time.Now().UTC()); err == nil {
		t.Fatalf("expected unique (event_id, url) violation")
	}
}

func TestItemStore_PassLifecycleAndRetryableSelection(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	event := mustCreateEvent(t, factory, "status_pass", "usr_1")
	items := factory.ItemStore()

	created, err := items.CreateBatch(ctx, event.ID, []string{
		"https://a.example/inbox",
		"https://b.example/inbox",
		"https://c.example/inbox",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}

	retryable, err := items.ListRetryable(ctx, event.ID)
	if err != nil {
		t.Fatalf("list retryable: %v", err)
	}
	if len(retryable) != 3 {
		t.Fatalf("expected all 3 items retryable before first pass, got %d", len(retryable))
	}

	startAt := time.Now().UTC()
	ids := []string{created[0].ID, created[1].ID, created[2].ID}
	if err := items.MarkPassStart(ctx, ids, startAt); err != nil {
		t.Fatalf("mark pass start: %v", err)
	}

	endAt := startAt.Add(120 * time.Millisecond)
	outcomes := []core.DeliveryOutcome{
		{ItemID: created[0].ID, URL: created[0].URL, Success: true, HTTPStatus: 202},
		{ItemID: created[1].ID, URL: created[1].URL, Success: false, HTTPStatus: 502, ErrorText: "remote returned 502 Bad Gateway"},
		{ItemID: created[2].ID, URL: created[2].URL, Success: false, ErrorText: "timeout: context deadline exceeded"},
	}
	for _, outcome := range outcomes {
		if err := items.RecordOutcome(ctx, outcome, endAt); err != nil {
			t.Fatalf("record outcome %s: %v", outcome.ItemID, err)
		}
	}

	retryable, err = items.ListRetryable(ctx, event.ID)
	if err != nil {
		t.Fatalf("list retryable after pass: %v", err)
	}
	if len(retryable) != 2 {
		t.Fatalf("expected 2 retryable items after pass, got %d", len(retryable))
	}
	for _, item := range retryable {
		if item.Succeeded() {
			t.Fatalf("retryable item %s should not be a success", item.ID)
		}
		if !item.Attempted() {
			t.Fatalf("retryable item %s should carry a recorded outcome", item.ID)
		}
	}

	all, err := items.ListAll(ctx, event.ID)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if got := core.AggregateResult(all, 1, 5); got != core.DeliveryResultPending {
		t.Fatalf("expected pending aggregate with retries left, got %q", got)
	}
	if got := core.AggregateResult(all, 5, 5); got != core.DeliveryResultPartialFailure {
		t.Fatalf("expected partial failure aggregate when exhausted, got %q", got)
	}

	// second pass: the two failures flip back to in-flight
	if err := items.MarkPassStart(ctx, []string{retryable[0].ID, retryable[1].ID}, time.Now().UTC()); err != nil {
		t.Fatalf("mark second pass start: %v", err)
	}
	all, err = items.ListAll(ctx, event.ID)
	if err != nil {
		t.Fatalf("list all after second pass start: %v", err)
	}
	inFlight := 0
	for _, item := range all {
		if !item.Attempted() {
			inFlight++
		}
	}
	if inFlight != 2 {
		t.Fatalf("expected 2 in-flight items, got %d", inFlight)
	}
}

func TestItemStore_ListByEventOnlyErrorsPaginates(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	event := mustCreateEvent(t, factory, "status_page", "usr_1")
	items := factory.ItemStore()

	urls := make([]string, 0, 26)
	for i := 0; i < 26; i++ {
		urls = append(urls, fmt.Sprintf("https://remote-%02d.example/inbox", i))
	}
	created, err := items.CreateBatch(ctx, event.ID, urls, time.Now().UTC())
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}

	endAt := time.Now().UTC()
	for i, item := range created {
		outcome := core.DeliveryOutcome{ItemID: item.ID, URL: item.URL, Success: i < 12, HTTPStatus: 202}
		if !outcome.Success {
			outcome.HTTPStatus = 503
			outcome.ErrorText = "remote returned 503 Service Unavailable"
		}
		if err := items.RecordOutcome(ctx, outcome, endAt); err != nil {
			t.Fatalf("record outcome: %v", err)
		}
	}

	pageOne, err := items.ListByEvent(ctx, event.ID, true, 1, 10)
	if err != nil {
		t.Fatalf("list only errors page 1: %v", err)
	}
	if pageOne.Total != 14 {
		t.Fatalf("expected 14 failed items, got total %d", pageOne.Total)
	}
	if len(pageOne.Items) != 10 {
		t.Fatalf("expected 10 items on page 1, got %d", len(pageOne.Items))
	}
	for _, item := range pageOne.Items {
		if item.Succeeded() {
			t.Fatalf("only-errors page returned successful item %s", item.ID)
		}
		if item.ErrorMessage == "" {
			t.Fatalf("expected error text on failed item %s", item.ID)
		}
	}

	pageTwo, err := items.ListByEvent(ctx, event.ID, true, 2, 10)
	if err != nil {
		t.Fatalf("list only errors page 2: %v", err)
	}
	if len(pageTwo.Items) != 4 {
		t.Fatalf("expected 4 items on page 2, got %d", len(pageTwo.Items))
	}

	full, err := items.ListByEvent(ctx, event.ID, false, 1, 30)
	if err != nil {
		t.Fatalf("list all items: %v", err)
	}
	if full.Total != 26 || len(full.Items) != 26 {
		t.Fatalf("expected 26 items, got total=%d len=%d", full.Total, len(full.Items))
	}
}

func mustCreateEvent(t *testing.T, factory *sqlstore.RepositoryFactory, statusID, userID string) core.DeliveryEvent {
	t.Helper()
	event, err := factory.EventStore().Create(context.Background(), core.DeliveryEvent{
		StatusID: statusID,
		UserID:   userID,
		Type:     core.ActivityTypeCreate,
	})
	if err != nil {
		t.Fatalf("create event for %s: %v", statusID, err)
	}
	return event
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:federation-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, dialect, err := sqlstore.OpenDatabase("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = federationmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != federationmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, federationmigrations.WithValidationTargets(federationmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
