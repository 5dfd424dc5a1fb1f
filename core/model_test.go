package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leandroluk/argil/core"
	"github.com/leandroluk/argil/driver/memory"
)

func userSchema() *core.Schema {
	return core.NewSchema("users",
		core.Fields(
			core.NewField("id", core.TypeUUID, core.PrimaryKey(), core.DefaultFunc(core.NewUUID)),
			core.NewField("name", core.TypeString, core.Required(), core.MaxLength(80)),
			core.NewField("email", core.TypeString, core.Pattern(`@`)),
			core.NewField("age", core.TypeNumber, core.Min(0)),
		),
		core.SoftDelete(),
		core.Timestamps(),
		core.Scope("adults", func(args ...any) core.Filter {
			return core.Filter{"age": core.Ops{"gte": 18}}
		}),
	)
}

func newUserModel(t *testing.T) *core.Model {
	t.Helper()
	return core.NewModel(userSchema(), memory.NewMemoryDriver())
}

func TestModel_CreateAppliesDefaultsAndTimestamps(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	created, err := users.Create(ctx, core.Record{"name": "Ana", "age": 30})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.NotEmpty(t, created["id"])
	assert.Equal(t, float64(30), created["age"])
	assert.IsType(t, time.Time{}, created["createdAt"])
	assert.IsType(t, time.Time{}, created["updatedAt"])

	found, err := users.Find(ctx, created["id"])
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Ana", found["name"])
}

func TestModel_CreateValidationFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	_, err := users.Create(ctx, core.Record{"age": 30})
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))

	total, err := users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestModel_CreateHookOrder(t *testing.T) {
	ctx := context.Background()
	schema := userSchema()
	var trace []string
	for _, hook := range []core.Hook{
		core.BeforeValidate, core.AfterValidate,
		core.BeforeCreate, core.BeforeSave,
		core.AfterCreate, core.AfterSave,
	} {
		hook := hook
		schema.RegisterHook(hook, func(ctx context.Context, record core.Record) error {
			trace = append(trace, string(hook))
			return nil
		})
	}
	users := core.NewModel(schema, memory.NewMemoryDriver())

	_, err := users.Create(ctx, core.Record{"name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"before:validate", "after:validate",
		"before:create", "before:save",
		"after:create", "after:save",
	}, trace)
}

func TestModel_BeforeHookErrorAborts(t *testing.T) {
	ctx := context.Background()
	schema := userSchema()
	schema.RegisterHook(core.BeforeCreate, func(ctx context.Context, record core.Record) error {
		return errors.New("not today")
	})
	users := core.NewModel(schema, memory.NewMemoryDriver())

	_, err := users.Create(ctx, core.Record{"name": "Ana"})
	require.EqualError(t, err, "not today")

	total, err := users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestModel_HookMutationsReachThePayload(t *testing.T) {
	ctx := context.Background()
	schema := userSchema()
	schema.RegisterHook(core.BeforeCreate, func(ctx context.Context, record core.Record) error {
		record["name"] = record["name"].(string) + "!"
		return nil
	})
	users := core.NewModel(schema, memory.NewMemoryDriver())

	created, err := users.Create(ctx, core.Record{"name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "Ana!", created["name"])
}

func TestModel_SoftDeleteLifecycle(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	created, err := users.Create(ctx, core.Record{"name": "Ana"})
	require.NoError(t, err)
	id := created["id"]

	// first delete trashes the record
	deleted, err := users.Delete(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	// trashed records are invisible by default
	found, err := users.Find(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, found)

	// but reachable with the trashed modes
	trashed, err := users.Query().Where(id).WithTrashed().FindOne(ctx)
	require.NoError(t, err)
	require.NotNil(t, trashed)
	assert.NotNil(t, trashed["deletedAt"])

	onlyTrashed, err := users.Query().Where(id).OnlyTrashed().FindOne(ctx)
	require.NoError(t, err)
	assert.NotNil(t, onlyTrashed)

	// deleting an already trashed record matches nothing
	deleted, err = users.Delete(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	// restore clears the marker and the record is visible again
	restored, err := users.Restore(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), restored)

	found, err = users.Find(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, found)
}

func TestModel_ForceDeleteRemovesTrashedRecords(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	created, err := users.Create(ctx, core.Record{"name": "Ana"})
	require.NoError(t, err)
	id := created["id"]

	_, err = users.Delete(ctx, id)
	require.NoError(t, err)

	removed, err := users.ForceDelete(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	trashed, err := users.Query().Where(id).WithTrashed().FindOne(ctx)
	require.NoError(t, err)
	assert.Nil(t, trashed)
}

func TestModel_RestoreRequiresSoftDelete(t *testing.T) {
	ctx := context.Background()
	schema := core.NewSchema("plain", core.Fields(
		core.NewField("id", core.TypeUUID, core.PrimaryKey(), core.DefaultFunc(core.NewUUID)),
	))
	plain := core.NewModel(schema, memory.NewMemoryDriver())

	_, err := plain.Restore(ctx, "x")
	require.Error(t, err)
}

func TestModel_HardDeleteWithoutSoftDelete(t *testing.T) {
	ctx := context.Background()
	schema := core.NewSchema("plain", core.Fields(
		core.NewField("id", core.TypeUUID, core.PrimaryKey(), core.DefaultFunc(core.NewUUID)),
	))
	plain := core.NewModel(schema, memory.NewMemoryDriver())

	created, err := plain.Create(ctx, core.Record{})
	require.NoError(t, err)

	deleted, err := plain.Delete(ctx, created["id"])
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	found, err := plain.Find(ctx, created["id"])
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestModel_UpdateRefreshesUpdatedAtOnly(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	created, err := users.Create(ctx, core.Record{"name": "Ana"})
	require.NoError(t, err)
	createdAt := created["createdAt"].(time.Time)

	time.Sleep(5 * time.Millisecond)

	updated, err := users.Update(ctx, created["id"], core.Record{"name": "Bia"})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Bia", updated["name"])

	updatedAt := updated["updatedAt"].(time.Time)
	assert.False(t, updatedAt.Before(createdAt))

	stored, err := users.Find(ctx, created["id"])
	require.NoError(t, err)
	assert.Equal(t, createdAt, stored["createdAt"])
}

func TestModel_UpdateReturnsNilWhenNothingMatches(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	updated, err := users.Update(ctx, core.Filter{"name": "ghost"}, core.Record{"age": 1})
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestModel_UpdateRunsValidation(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	created, err := users.Create(ctx, core.Record{"name": "Ana"})
	require.NoError(t, err)

	_, err = users.Update(ctx, created["id"], core.Record{"age": -3})
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))
}

func TestModel_UpdateManySkipsHooks(t *testing.T) {
	ctx := context.Background()
	schema := userSchema()
	hookRuns := 0
	schema.RegisterHook(core.BeforeUpdate, func(ctx context.Context, record core.Record) error {
		hookRuns++
		return nil
	})
	users := core.NewModel(schema, memory.NewMemoryDriver())

	for i := 0; i < 3; i++ {
		_, err := users.Create(ctx, core.Record{"name": fmt.Sprintf("user-%d", i), "age": 20})
		require.NoError(t, err)
	}

	modified, err := users.UpdateMany(ctx, core.Filter{"age": core.Ops{"gte": 18}}, core.Changes{"age": 21})
	require.NoError(t, err)
	assert.Equal(t, int64(3), modified)
	assert.Zero(t, hookRuns)

	records, err := users.FindAll(ctx, nil)
	require.NoError(t, err)
	for _, record := range records {
		assert.Equal(t, float64(21), record["age"])
	}
}

func TestModel_QueryChainFiltersSortsAndWindows(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	for i := 1; i <= 5; i++ {
		_, err := users.Create(ctx, core.Record{"name": fmt.Sprintf("user-%d", i), "age": i * 10})
		require.NoError(t, err)
	}

	records, err := users.Query().
		Where(core.Filter{"age": core.Ops{"gte": 20}}).
		OrderBy("age", "desc").
		Skip(1).
		Limit(2).
		FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, float64(40), records[0]["age"])
	assert.Equal(t, float64(30), records[1]["age"])
}

func TestModel_SortShorthandUsesPrimaryKey(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)
	_, err := users.Create(ctx, core.Record{"name": "Ana"})
	require.NoError(t, err)

	records, err := users.Query().Sort("desc").FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestModel_ScopeApplies(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	_, err := users.Create(ctx, core.Record{"name": "adult", "age": 30})
	require.NoError(t, err)
	_, err = users.Create(ctx, core.Record{"name": "minor", "age": 10})
	require.NoError(t, err)

	adults, err := users.Query().Scope("adults").FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, adults, 1)
	assert.Equal(t, "adult", adults[0]["name"])

	_, err = users.Query().Scope("nope").FindAll(ctx)
	require.Error(t, err)
}

func TestModel_CountAndExists(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	_, err := users.Create(ctx, core.Record{"name": "Ana", "age": 30})
	require.NoError(t, err)

	total, err := users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	found, err := users.Exists(ctx, core.Filter{"age": core.Ops{"gt": 18}})
	require.NoError(t, err)
	assert.True(t, found)

	found, err = users.Exists(ctx, core.Filter{"age": core.Ops{"gt": 99}})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestModel_Paginate(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	for i := 0; i < 10; i++ {
		_, err := users.Create(ctx, core.Record{"name": fmt.Sprintf("user-%02d", i), "age": i})
		require.NoError(t, err)
	}

	page, err := users.Query().OrderBy("name", "asc").Paginate(ctx, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(10), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 4, page.PageSize)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Data, 4)
	assert.Equal(t, "user-04", page.Data[0]["name"])

	last, err := users.Query().OrderBy("name", "asc").Paginate(ctx, 3, 4)
	require.NoError(t, err)
	assert.Len(t, last.Data, 2)
}

func TestModel_IncrementAndDecrement(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	created, err := users.Create(ctx, core.Record{"name": "Ana", "age": 30})
	require.NoError(t, err)

	modified, err := users.Query().Where(created["id"]).Increment(ctx, "age", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), modified)

	modified, err = users.Query().Where(created["id"]).Decrement(ctx, "age", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), modified)

	stored, err := users.Find(ctx, created["id"])
	require.NoError(t, err)
	assert.Equal(t, float64(33), stored["age"])
}

func TestModel_IncrementManyAcrossRecords(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	for name, age := range map[string]float64{"Ana": 10, "Bia": 20, "Caio": 50} {
		_, err := users.Create(ctx, core.Record{"name": name, "age": age})
		require.NoError(t, err)
	}

	modified, err := users.IncrementMany(ctx,
		core.Filter{"name": core.Ops{"in": []string{"Ana", "Bia"}}}, "age", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), modified)

	ana, err := users.Find(ctx, core.Filter{"name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, float64(15), ana["age"])

	bia, err := users.Find(ctx, core.Filter{"name": "Bia"})
	require.NoError(t, err)
	assert.Equal(t, float64(25), bia["age"])

	caio, err := users.Find(ctx, core.Filter{"name": "Caio"})
	require.NoError(t, err)
	assert.Equal(t, float64(50), caio["age"])
}

// writeCountingDriver counts Update round trips so tests can assert that
// no-op updates never reach the backend.
type writeCountingDriver struct {
	*memory.MemoryDriver
	updates int
}

func (d *writeCountingDriver) Update(ctx context.Context, schema *core.Schema, condition *core.Condition, changes core.Changes) (int64, error) {
	d.updates++
	return d.MemoryDriver.Update(ctx, schema, condition, changes)
}

func settingsSchema() *core.Schema {
	return core.NewSchema("settings", core.Fields(
		core.NewField("id", core.TypeUUID, core.PrimaryKey(), core.DefaultFunc(core.NewUUID)),
		core.NewField("name", core.TypeString),
	))
}

func TestModel_UpdateWithoutChangesSkipsWrite(t *testing.T) {
	ctx := context.Background()
	driver := &writeCountingDriver{MemoryDriver: memory.NewMemoryDriver()}
	settings := core.NewModel(settingsSchema(), driver)

	created, err := settings.Create(ctx, core.Record{"name": "Ana"})
	require.NoError(t, err)

	same, err := settings.Update(ctx, created["id"], core.Record{"name": "Ana"})
	require.NoError(t, err)
	require.NotNil(t, same)
	assert.Equal(t, "Ana", same["name"])
	assert.Zero(t, driver.updates)

	changed, err := settings.Update(ctx, created["id"], core.Record{"name": "Bia"})
	require.NoError(t, err)
	assert.Equal(t, "Bia", changed["name"])
	assert.Equal(t, 1, driver.updates)
}

func TestModel_UpdateManyWithoutChangesSkipsWrite(t *testing.T) {
	ctx := context.Background()
	driver := &writeCountingDriver{MemoryDriver: memory.NewMemoryDriver()}
	settings := core.NewModel(settingsSchema(), driver)

	_, err := settings.Create(ctx, core.Record{"name": "Ana"})
	require.NoError(t, err)

	modified, err := settings.UpdateMany(ctx, nil, core.Changes{})
	require.NoError(t, err)
	assert.Zero(t, modified)
	assert.Zero(t, driver.updates)
}

func TestModel_CachedReadsAreIsolatedFromCallerMutation(t *testing.T) {
	core.ResetMiddlewares()
	t.Cleanup(core.ResetMiddlewares)
	core.Use(core.CacheMiddleware(core.NewMemoryCache()))

	ctx := context.Background()
	schema := core.NewSchema("profiles",
		core.Fields(
			core.NewField("id", core.TypeUUID, core.PrimaryKey(), core.DefaultFunc(core.NewUUID)),
			core.NewField("name", core.TypeString),
		),
		core.CacheTTL(time.Minute),
	)
	profiles := core.NewModel(schema, memory.NewMemoryDriver())

	created, err := profiles.Create(ctx, core.Record{"name": "Ana"})
	require.NoError(t, err)

	first, err := profiles.Find(ctx, created["id"])
	require.NoError(t, err)
	first["name"] = "mutated"

	second, err := profiles.Find(ctx, created["id"])
	require.NoError(t, err)
	assert.Equal(t, "Ana", second["name"])
}

func TestModel_FindOrCreate(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	first, created, err := users.FindOrCreate(ctx, core.Filter{"name": "Ana"}, core.Record{"age": 30})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Ana", first["name"])
	assert.Equal(t, float64(30), first["age"])

	second, created, err := users.FindOrCreate(ctx, core.Filter{"name": "Ana"}, core.Record{"age": 99})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first["id"], second["id"])
	assert.Equal(t, float64(30), second["age"])
}

func TestModel_UpdateOrCreate(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	created, err := users.UpdateOrCreate(ctx, core.Filter{"name": "Ana"}, core.Record{"age": 30})
	require.NoError(t, err)
	assert.Equal(t, float64(30), created["age"])

	updated, err := users.UpdateOrCreate(ctx, core.Filter{"name": "Ana"}, core.Record{"age": 31})
	require.NoError(t, err)
	assert.Equal(t, created["id"], updated["id"])
	assert.Equal(t, float64(31), updated["age"])

	total, err := users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestModel_AggregateUnsupportedOnMemory(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	_, err := users.Query().Aggregate(ctx, "GROUP BY age")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnsupported))
}

func TestModel_DriverNotConfigured(t *testing.T) {
	ctx := context.Background()
	users := core.NewModel(userSchema(), nil)

	_, err := users.Find(ctx, "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotConfigured))
}

func TestModel_EventsAreEmitted(t *testing.T) {
	core.ResetListeners()
	t.Cleanup(core.ResetListeners)

	ctx := context.Background()
	users := newUserModel(t)

	received := make(chan core.InsertPayload, 1)
	core.On(core.EventInsert, func(payload any) {
		received <- payload.(core.InsertPayload)
	})

	created, err := users.Create(ctx, core.Record{"name": "Ana"})
	require.NoError(t, err)

	select {
	case payload := <-received:
		assert.Equal(t, "users", payload.Schema.Collection)
		assert.Equal(t, created["id"], payload.Record["id"])
	case <-time.After(2 * time.Second):
		t.Fatal("insert event was not emitted")
	}
}

func TestModel_EventPayloadIsIsolatedFromCallerMutation(t *testing.T) {
	core.ResetListeners()
	t.Cleanup(core.ResetListeners)

	ctx := context.Background()
	users := newUserModel(t)

	received := make(chan core.InsertPayload, 1)
	core.On(core.EventInsert, func(payload any) {
		received <- payload.(core.InsertPayload)
	})

	created, err := users.Create(ctx, core.Record{"name": "Ana"})
	require.NoError(t, err)

	var payload core.InsertPayload
	select {
	case payload = <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("insert event was not emitted")
	}

	created["name"] = "mutated"
	assert.Equal(t, "Ana", payload.Record["name"])
}

func TestModel_TransactionRollback(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	err := users.Transaction(ctx, func(txCtx context.Context) error {
		if _, err := users.Create(txCtx, core.Record{"name": "Ana"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	total, err := users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestModel_TransactionCommit(t *testing.T) {
	ctx := context.Background()
	users := newUserModel(t)

	err := users.Transaction(ctx, func(txCtx context.Context) error {
		_, err := users.Create(txCtx, core.Record{"name": "Ana"})
		return err
	})
	require.NoError(t, err)

	total, err := users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestModel_WithDatabaseIsolatesCollections(t *testing.T) {
	ctx := context.Background()
	driver := memory.NewMemoryDriver()
	users := core.NewModel(userSchema(), driver)
	tenant := users.WithDatabase("tenant_a")

	_, err := tenant.Create(ctx, core.Record{"name": "Ana"})
	require.NoError(t, err)

	defaultTotal, err := users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, defaultTotal)

	tenantTotal, err := tenant.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tenantTotal)
}

func TestModel_GetterTransformsApplyOnReads(t *testing.T) {
	ctx := context.Background()
	schema := core.NewSchema("secrets",
		core.Fields(
			core.NewField("id", core.TypeUUID, core.PrimaryKey(), core.DefaultFunc(core.NewUUID)),
			core.NewField("token", core.TypeString, core.Getter(func(v any) any {
				return "****"
			})),
		),
	)
	secrets := core.NewModel(schema, memory.NewMemoryDriver())

	created, err := secrets.Create(ctx, core.Record{"token": "plain-value"})
	require.NoError(t, err)

	found, err := secrets.Find(ctx, created["id"])
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "****", found["token"])

	// the stored value itself is untouched; equality still matches the raw token
	raw, err := secrets.Exists(ctx, core.Filter{"token": "plain-value"})
	require.NoError(t, err)
	assert.True(t, raw)
}

func TestModel_VirtualFields(t *testing.T) {
	schema := core.NewSchema("users",
		core.Fields(
			core.NewField("firstName", core.TypeString),
			core.NewField("lastName", core.TypeString),
		),
		core.Virtual("fullName", func(record core.Record) any {
			return fmt.Sprintf("%v %v", record["firstName"], record["lastName"])
		}),
	)

	value, ok := schema.ComputeVirtual("fullName", core.Record{"firstName": "Ana", "lastName": "Silva"})
	require.True(t, ok)
	assert.Equal(t, "Ana Silva", value)

	_, ok = schema.ComputeVirtual("missing", core.Record{})
	assert.False(t, ok)
}
