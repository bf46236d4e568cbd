package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestManager(t *testing.T, entries ...types.AppEntry) (*Manager, *MemoryStore, *clockwork.FakeClock) {
	t.Helper()
	store := NewMemoryStore()
	clock := clockwork.NewFakeClock()
	m := NewManager(store, WithClock(clock))
	for _, e := range entries {
		require.NoError(t, m.RegisterApp(e))
	}
	return m, store, clock
}

func entry(name string, deps ...string) types.AppEntry {
	return types.AppEntry{
		Name:         name,
		Version:      "1.0.0",
		Description:  name + " module",
		Author:       "system",
		Category:     types.CategorySystem,
		Dependencies: deps,
	}
}

func names(entries []types.AppEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestRegisterAppValidation(t *testing.T) {
	pending := entry("pending")
	pending.Status = types.StatusPending

	tests := []struct {
		name    string
		entry   types.AppEntry
		wantErr error
	}{
		{name: "missing dependency", entry: entry("mail", "ghost"), wantErr: ErrDependencyMissing},
		{name: "dependency not installed", entry: entry("mail", "pending"), wantErr: ErrDependencyNotInstalled},
		{name: "self dependency", entry: entry("loop", "loop"), wantErr: ErrCircularDependency},
		{name: "empty name", entry: entry("  "), wantErr: ErrInvalidEntry},
		{name: "name with spaces", entry: entry("my app"), wantErr: ErrInvalidEntry},
		{name: "unknown category", entry: types.AppEntry{Name: "x", Category: "games"}, wantErr: ErrInvalidEntry},
		{name: "one bad dependency among good", entry: entry("mail", "vault", "ghost"), wantErr: ErrDependencyMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store, _ := newTestManager(t, entry("vault"), pending)
			saves := store.Saves()

			err := m.RegisterApp(tt.entry)
			require.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, 2, m.Len())
			assert.Equal(t, saves, store.Saves())
		})
	}
}

func TestRegisterAppDefaultsAndStamps(t *testing.T) {
	m, store, clock := newTestManager(t)
	clock.Advance(time.Hour)

	require.NoError(t, m.RegisterApp(types.AppEntry{Name: "notes"}))

	got, err := m.GetApp("notes")
	require.NoError(t, err)
	assert.Equal(t, types.CategoryUser, got.Category)
	assert.Equal(t, types.StatusInstalled, got.Status)
	assert.Equal(t, clock.Now(), got.InstallDate)
	assert.Equal(t, clock.Now(), got.LastUpdate)
	assert.Equal(t, 1, store.Saves())
}

func TestRegisterAppReplacesInPlace(t *testing.T) {
	m, _, _ := newTestManager(t, entry("vault"), entry("mail", "vault"), entry("notes"))

	updated := entry("mail", "vault")
	updated.Version = "2.0.0"
	require.NoError(t, m.RegisterApp(updated))

	all := m.ListApps(types.EntryFilter{})
	require.Equal(t, []string{"vault", "mail", "notes"}, names(all))
	assert.Equal(t, "2.0.0", all[1].Version)
}

func TestRegisterAppReplaceKeepsInstallDate(t *testing.T) {
	m, _, clock := newTestManager(t, entry("vault"))
	installed := clock.Now()

	clock.Advance(time.Hour)
	updated := entry("vault")
	updated.Version = "2.0.0"
	require.NoError(t, m.RegisterApp(updated))

	got, err := m.GetApp("vault")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", got.Version)
	assert.Equal(t, installed, got.InstallDate)
	assert.Equal(t, clock.Now(), got.LastUpdate)
}

func TestRegisterAppReplaceRejectsCycle(t *testing.T) {
	m, _, _ := newTestManager(t, entry("vault"), entry("mail", "vault"))

	err := m.RegisterApp(entry("vault", "mail"))
	require.ErrorIs(t, err, ErrCircularDependency)

	got, err := m.GetApp("vault")
	require.NoError(t, err)
	assert.Empty(t, got.Dependencies)
}

func TestAddRejectsExisting(t *testing.T) {
	m, _, _ := newTestManager(t, entry("vault"))

	assert.ErrorIs(t, m.Add(entry("vault")), ErrAlreadyExists)
	assert.NoError(t, m.Add(entry("mail", "vault")))
}

func TestGetLoadOrder(t *testing.T) {
	m, _, _ := newTestManager(t, entry("A"), entry("B", "A"), entry("C", "A", "B"), entry("D"))

	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "reverse input", input: []string{"C", "B", "A"}, want: []string{"A", "B", "C"}},
		{name: "shuffled input", input: []string{"B", "C", "A"}, want: []string{"A", "B", "C"}},
		{name: "all", input: nil, want: []string{"A", "B", "C", "D"}},
		{name: "subset", input: []string{"D", "C"}, want: []string{"D", "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.GetLoadOrder(tt.input...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := m.GetLoadOrder(tt.input...)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestGetStartOrder(t *testing.T) {
	m, _, _ := newTestManager(t, entry("vault"), entry("net", "vault"), entry("mail", "net"), entry("notes"))

	got, err := m.GetStartOrder("mail")
	require.NoError(t, err)
	assert.Equal(t, []string{"vault", "net", "mail"}, got)

	got, err = m.GetStartOrder("notes")
	require.NoError(t, err)
	assert.Equal(t, []string{"notes"}, got)

	_, err = m.GetStartOrder("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetLoadOrderUnknown(t *testing.T) {
	m, _, _ := newTestManager(t, entry("A"))
	_, err := m.GetLoadOrder("A", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetLoadOrderCycleFromImport(t *testing.T) {
	m, _, _ := newTestManager(t)

	snap := NewSnapshot([]types.AppEntry{entry("A", "B"), entry("B", "A")}, time.Now())
	require.NoError(t, m.Import(snap, false))

	done := make(chan error, 1)
	go func() {
		_, err := m.GetLoadOrder()
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrCircularDependency)
		assert.Contains(t, err.Error(), "A")
	case <-time.After(5 * time.Second):
		t.Fatal("GetLoadOrder did not return on a cyclic registry")
	}
}

func TestUnregisterGuard(t *testing.T) {
	m, _, _ := newTestManager(t, entry("A"), entry("B", "A"))

	err := m.UnregisterApp("A")
	require.ErrorIs(t, err, ErrDependentsExist)
	assert.Contains(t, err.Error(), "B")
	assert.True(t, m.Has("A"))

	require.NoError(t, m.UnregisterApp("B"))
	require.NoError(t, m.UnregisterApp("A"))
	assert.ErrorIs(t, m.UnregisterApp("A"), ErrNotFound)
	assert.Zero(t, m.Len())
}

func TestUpdateApp(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		assert.ErrorIs(t, m.UpdateApp("ghost", types.StatusPatch(types.StatusDisabled)), ErrNotFound)
	})

	t.Run("partial merge refreshes last update", func(t *testing.T) {
		m, _, clock := newTestManager(t, entry("vault"))
		installed := clock.Now()
		clock.Advance(time.Minute)

		version := "1.1.0"
		auto := true
		require.NoError(t, m.UpdateApp("vault", types.AppPatch{Version: &version, AutoStart: &auto}))

		got, err := m.GetApp("vault")
		require.NoError(t, err)
		assert.Equal(t, "1.1.0", got.Version)
		assert.True(t, got.AutoStart)
		assert.Equal(t, "system", got.Author)
		assert.Equal(t, installed, got.InstallDate)
		assert.Equal(t, clock.Now(), got.LastUpdate)
	})

	t.Run("dependency change validated", func(t *testing.T) {
		m, _, _ := newTestManager(t, entry("vault"), entry("mail", "vault"))

		missing := []string{"ghost"}
		assert.ErrorIs(t, m.UpdateApp("mail", types.AppPatch{Dependencies: &missing}), ErrDependencyMissing)

		cycle := []string{"mail"}
		assert.ErrorIs(t, m.UpdateApp("vault", types.AppPatch{Dependencies: &cycle}), ErrCircularDependency)

		self := []string{"vault"}
		assert.ErrorIs(t, m.UpdateApp("vault", types.AppPatch{Dependencies: &self}), ErrCircularDependency)

		got, _ := m.GetApp("vault")
		assert.Empty(t, got.Dependencies)
	})

	t.Run("status patch skips dependency checks", func(t *testing.T) {
		m, _, _ := newTestManager(t, entry("vault"), entry("mail", "vault"))

		require.NoError(t, m.SetStatus("vault", types.StatusError))
		require.NoError(t, m.SetStatus("mail", types.StatusDisabled))

		got, _ := m.GetApp("mail")
		assert.Equal(t, types.StatusDisabled, got.Status)
	})

	t.Run("invalid category", func(t *testing.T) {
		m, _, _ := newTestManager(t, entry("vault"))
		bad := types.Category("games")
		assert.ErrorIs(t, m.UpdateApp("vault", types.AppPatch{Category: &bad}), ErrInvalidEntry)
	})
}

func TestValidateDependencies(t *testing.T) {
	disabled := entry("old")
	disabled.Status = types.StatusDisabled
	m, _, _ := newTestManager(t, entry("vault"), disabled)

	assert.True(t, m.ValidateDependencies(nil))
	assert.True(t, m.ValidateDependencies([]string{"vault"}))
	assert.False(t, m.ValidateDependencies([]string{"vault", "old"}))
	assert.False(t, m.ValidateDependencies([]string{"ghost"}))
}

func TestGetAutoStartApps(t *testing.T) {
	vault := entry("vault")
	vault.AutoStart = true
	mail := entry("mail", "vault")
	mail.AutoStart = true
	notes := entry("notes")
	broken := entry("broken")
	broken.AutoStart = true

	m, _, _ := newTestManager(t, vault, mail, notes, broken)
	require.NoError(t, m.SetStatus("broken", types.StatusError))

	assert.Equal(t, []string{"vault", "mail"}, names(m.GetAutoStartApps()))
}

func TestListAppsFilter(t *testing.T) {
	user := entry("notes")
	user.Category = types.CategoryUser
	m, _, _ := newTestManager(t, entry("vault"), user, entry("mail", "vault"))

	assert.Equal(t, []string{"vault", "mail"}, names(m.ListApps(types.EntryFilter{Category: types.CategorySystem})))
	assert.Equal(t, []string{"notes"}, names(m.ListApps(types.EntryFilter{Category: types.CategoryUser})))

	list := m.ListApps(types.EntryFilter{})
	require.NotEmpty(t, list)
	list[0].Dependencies = append(list[0].Dependencies, "mutated")
	got, _ := m.GetApp("vault")
	assert.Empty(t, got.Dependencies)
}

func assertSameEntries(t *testing.T, want, got []types.AppEntry) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		w, g := want[i], got[i]
		assert.True(t, w.InstallDate.Equal(g.InstallDate), "install date of %s", w.Name)
		assert.True(t, w.LastUpdate.Equal(g.LastUpdate), "last update of %s", w.Name)
		w.InstallDate, g.InstallDate = time.Time{}, time.Time{}
		w.LastUpdate, g.LastUpdate = time.Time{}, time.Time{}
		assert.Equal(t, w, g)
	}
}

func fullEntries() []types.AppEntry {
	vault := entry("vault")
	vault.AutoStart = true
	vault.Sovereign = true
	vault.Permissions = []string{"storage.read", "storage.write"}

	mail := entry("mail", "vault")
	mail.Category = types.CategoryPlugin
	mail.AutoStart = true
	mail.Permissions = []string{"net"}
	return []types.AppEntry{vault, mail, entry("notes")}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "registry.json")
	clock := clockwork.NewFakeClock()

	m := NewManager(NewFileStore(path, WithStoreClock(clock)), WithClock(clock))
	var saved time.Time
	for _, e := range fullEntries() {
		require.NoError(t, m.RegisterApp(e))
		saved = clock.Now()
		clock.Advance(time.Second)
	}
	want := m.ListApps(types.EntryFilter{})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap types.RegistrySnapshot
	require.NoError(t, sonic.Unmarshal(data, &snap))
	assert.True(t, saved.Equal(snap.ExportedAt), "exported at %s, want %s", snap.ExportedAt, saved)

	reloaded := NewManager(NewFileStore(path))
	assertSameEntries(t, want, reloaded.ListApps(types.EntryFilter{}))
	assert.False(t, reloaded.Dirty())
}

func TestExportImportJSON(t *testing.T) {
	src, _, _ := newTestManager(t, fullEntries()...)
	data, err := src.ExportJSON()
	require.NoError(t, err)

	t.Run("replace", func(t *testing.T) {
		dst, _, _ := newTestManager(t, entry("other"))
		require.NoError(t, dst.ImportJSON(data, false))
		assertSameEntries(t, src.ListApps(types.EntryFilter{}), dst.ListApps(types.EntryFilter{}))
	})

	t.Run("merge", func(t *testing.T) {
		dst, _, _ := newTestManager(t, entry("other"))
		require.NoError(t, dst.ImportJSON(data, true))
		assert.Equal(t, []string{"other", "vault", "mail", "notes"}, names(dst.ListApps(types.EntryFilter{})))
	})

	t.Run("malformed", func(t *testing.T) {
		dst, _, _ := newTestManager(t, entry("other"))
		assert.ErrorIs(t, dst.ImportJSON([]byte("{not json"), false), ErrInvalidEntry)
		assert.Equal(t, 1, dst.Len())
	})
}

func TestLoadFailureStartsEmpty(t *testing.T) {
	t.Run("store error", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		store := NewMemoryStore(entry("vault"))
		store.FailLoad(errors.New("disk gone"))

		m := NewManager(store, WithLogger(zap.New(core)))

		assert.Zero(t, m.Len())
		assert.Equal(t, 1, logs.FilterMessage("Failed to load registry, starting empty").Len())
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "registry.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"apps": [}`), 0o644))

		m := NewManager(NewFileStore(path))
		assert.Zero(t, m.Len())
		require.NoError(t, m.RegisterApp(entry("vault")))
	})

	t.Run("missing file", func(t *testing.T) {
		m := NewManager(NewFileStore(filepath.Join(t.TempDir(), "none.json")))
		assert.Zero(t, m.Len())
	})
}

func TestSaveFailureMarksDirty(t *testing.T) {
	m, store, _ := newTestManager(t)
	store.FailSave(errors.New("read-only"))

	require.NoError(t, m.RegisterApp(entry("vault")))
	assert.True(t, m.Dirty())
	assert.True(t, m.Stats().Dirty)
	assert.Error(t, m.Flush())

	store.FailSave(nil)
	require.NoError(t, m.Flush())
	assert.False(t, m.Dirty())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"vault"}, names(loaded))
}

func TestStats(t *testing.T) {
	vault := entry("vault")
	vault.AutoStart = true
	m, _, clock := newTestManager(t, vault, entry("mail", "vault"))
	require.NoError(t, m.SetStatus("mail", types.StatusError))

	stats := m.Stats()
	assert.Equal(t, 2, stats.TotalApps)
	assert.Equal(t, 1, stats.AutoStart)
	assert.Equal(t, 2, stats.Categories[types.CategorySystem])
	assert.Equal(t, 1, stats.Statuses[types.StatusError])
	require.NotNil(t, stats.LastUpdated)
	assert.Equal(t, clock.Now(), *stats.LastUpdated)
}

func TestConcurrentAccess(t *testing.T) {
	m, _, _ := newTestManager(t, entry("base"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("app-%d", i)
			assert.NoError(t, m.RegisterApp(entry(name, "base")))
			_, err := m.GetLoadOrder()
			assert.NoError(t, err)
			_ = m.ListApps(types.EntryFilter{})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 21, m.Len())
	assert.Len(t, m.GetDependents("base"), 20)
}
