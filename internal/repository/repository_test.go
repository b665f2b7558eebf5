package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tourinvoice/internal/database"
	"tourinvoice/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSnapshotRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotRepository(setupTestDB(t))

	if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}

	if err := store.Save(ctx, "s1", []byte(`{"ownerId":"a"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "s1", []byte(`{"ownerId":"b"}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	data, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != `{"ownerId":"b"}` {
		t.Fatalf("unexpected snapshot %s", data)
	}

	if err := store.Clear(ctx, "s1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound after clear, got %v", err)
	}
}

func TestMemoryStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	data := []byte(`{}`)
	if err := store.Save(ctx, "k", data); err != nil {
		t.Fatalf("save: %v", err)
	}
	data[0] = 'x'
	got, err := store.Load(ctx, "k")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != `{}` {
		t.Fatalf("store aliased caller bytes: %s", got)
	}
}

func TestInvoiceRepositoryListByOwner(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db)
	owner := uuid.New()
	other := uuid.New()

	for i, o := range []uuid.UUID{owner, owner, other} {
		inv := &model.SubmittedInvoice{
			OwnerID:      o,
			EmployeeName: "Employee",
			GrandTotal:   decimal.NewFromInt(int64(100 * (i + 1))),
			Document:     datatypes.JSON(`{}`),
		}
		if err := repo.Create(ctx, inv); err != nil {
			t.Fatalf("create: %v", err)
		}
		if inv.ID == uuid.Nil {
			t.Fatalf("expected generated id")
		}
	}

	invoices, total, err := repo.ListByOwner(ctx, owner, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(invoices) != 2 {
		t.Fatalf("expected 2 invoices, got total=%d len=%d", total, len(invoices))
	}

	found, err := repo.FindByID(ctx, invoices[0].ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.OwnerID != owner {
		t.Fatalf("unexpected owner %s", found.OwnerID)
	}
}

func TestTransactionRollsBackAuditAndInvoice(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	tx := NewTransactionManager(db)
	invoices := NewInvoiceRepository(db)
	audits := NewAuditRepository(db)

	inv := &model.SubmittedInvoice{OwnerID: uuid.New(), EmployeeName: "E", Document: datatypes.JSON(`{}`)}
	boom := errors.New("boom")
	err := tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := invoices.Create(txCtx, inv); err != nil {
			return err
		}
		if err := audits.Log(txCtx, &model.AuditLog{Action: model.ActionSubmitInvoice, EntityID: inv.ID.String()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := invoices.FindByID(ctx, inv.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected invoice rollback, got %v", err)
	}
	logs, err := audits.ListByEntity(ctx, inv.ID.String())
	if err != nil {
		t.Fatalf("list audits: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("expected audit rollback, got %d entries", len(logs))
	}
}

func TestAuditRepositoryListByUser(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditRepository(setupTestDB(t))
	user := uuid.New()
	other := uuid.New()

	for _, entry := range []model.AuditLog{
		{UserID: &user, Action: model.ActionSubmitInvoice, EntityID: "a"},
		{UserID: &user, Action: model.ActionRenderInvoice, EntityID: "a"},
		{UserID: &other, Action: model.ActionResetWizard, EntityID: "b"},
	} {
		entry := entry
		if err := repo.Log(ctx, &entry); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	logs, total, err := repo.ListByUser(ctx, user, 1, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(logs) != 1 {
		t.Fatalf("expected page of 1 out of 2, got total=%d len=%d", total, len(logs))
	}
}

func TestRunInTxJoinsOuterTransaction(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	tx := NewTransactionManager(db)
	invoices := NewInvoiceRepository(db)

	inv := &model.SubmittedInvoice{OwnerID: uuid.New(), EmployeeName: "E", Document: datatypes.JSON(`{}`)}
	boom := errors.New("boom")
	err := tx.RunInTx(ctx, func(outer context.Context) error {
		if err := tx.RunInTx(outer, func(inner context.Context) error {
			return invoices.Create(inner, inv)
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := invoices.FindByID(ctx, inv.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected inner write rolled back with the outer transaction, got %v", err)
	}
}

func TestRunInTxRerunsSerializationFailures(t *testing.T) {
	ctx := context.Background()
	tx := NewTransactionManager(setupTestDB(t), WithTxBackoff(func() retry.Backoff {
		return retry.WithMaxRetries(3, retry.NewConstant(time.Millisecond))
	}))

	attempts := 0
	err := tx.RunInTx(ctx, func(context.Context) error {
		attempts++
		if attempts == 1 {
			return &pgconn.PgError{Code: pgSerializationFailure}
		}
		return nil
	})
	if err != nil || attempts != 2 {
		t.Fatalf("expected success on second attempt, got err=%v attempts=%d", err, attempts)
	}

	attempts = 0
	boom := errors.New("constraint violated")
	if err := tx.RunInTx(ctx, func(context.Context) error {
		attempts++
		return boom
	}); !errors.Is(err, boom) || attempts != 1 {
		t.Fatalf("expected non-retryable error once, got err=%v attempts=%d", err, attempts)
	}
}
