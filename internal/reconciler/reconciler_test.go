package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratamalabs/domaindesk/internal/config"
	"github.com/pratamalabs/domaindesk/internal/contentfilter"
	"github.com/pratamalabs/domaindesk/internal/logger"
	"github.com/pratamalabs/domaindesk/internal/models"
	"github.com/pratamalabs/domaindesk/internal/registrar"
)

type fakeStore struct {
	domains []*models.Domain
	nextID  int64
	batches [][]*models.Domain
}

func (s *fakeStore) ListAll(ctx context.Context) ([]models.Domain, error) {
	out := make([]models.Domain, len(s.domains))
	for i, d := range s.domains {
		out[i] = *d
	}
	return out, nil
}

func (s *fakeStore) ListUsed(ctx context.Context) ([]models.Domain, error) {
	var out []models.Domain
	for _, d := range s.domains {
		if d.IsUsed {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *fakeStore) FindByRegistrarID(ctx context.Context, registrarID string) (*models.Domain, error) {
	for _, d := range s.domains {
		if d.RegistrarID != nil && *d.RegistrarID == registrarID {
			copied := *d
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindByName(ctx context.Context, name string) (*models.Domain, error) {
	for _, d := range s.domains {
		if models.NameKey(d.Name) == models.NameKey(name) {
			copied := *d
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) Create(ctx context.Context, domain *models.Domain) error {
	s.nextID++
	domain.ID = s.nextID
	copied := *domain
	s.domains = append(s.domains, &copied)
	return nil
}

func (s *fakeStore) UpdateBatch(ctx context.Context, domains []*models.Domain) error {
	if len(domains) == 0 {
		return nil
	}
	s.batches = append(s.batches, domains)
	for _, updated := range domains {
		for i, d := range s.domains {
			if d.ID == updated.ID {
				copied := *updated
				s.domains[i] = &copied
			}
		}
	}
	return nil
}

func (s *fakeStore) byName(name string) *models.Domain {
	for _, d := range s.domains {
		if d.Name == name {
			return d
		}
	}
	return nil
}

type fakeAudit struct {
	recorded []models.SyncKind
}

func (a *fakeAudit) Record(ctx context.Context, kind models.SyncKind) error {
	a.recorded = append(a.recorded, kind)
	return nil
}

func (a *fakeAudit) LastTimestamp(ctx context.Context, kind models.SyncKind) (*time.Time, error) {
	return nil, nil
}

type fakeRegistrar struct {
	domains []registrar.Domain
	err     error
}

func (f *fakeRegistrar) ListDomains(ctx context.Context) ([]registrar.Domain, error) {
	return f.domains, f.err
}

func (f *fakeRegistrar) Reactivate(ctx context.Context, name string) (*registrar.RenewResult, error) {
	return &registrar.RenewResult{DomainName: name}, nil
}

func (f *fakeRegistrar) Renew(ctx context.Context, name string, years int) (*registrar.RenewResult, error) {
	return &registrar.RenewResult{DomainName: name}, nil
}

func (f *fakeRegistrar) GetInfo(ctx context.Context, name string) (*registrar.Info, error) {
	return &registrar.Info{Name: name}, nil
}

type fakeResolver struct {
	servers map[string][]string
}

func (f *fakeResolver) LookupNS(ctx context.Context, domain string) []string {
	return f.servers[domain]
}

type fakeFilter struct {
	statuses contentfilter.StatusMap
	err      error
	checked  [][]string
}

func (f *fakeFilter) CheckAll(ctx context.Context, names []string) (contentfilter.StatusMap, error) {
	f.checked = append(f.checked, names)
	return f.statuses, f.err
}

type fixture struct {
	store     *fakeStore
	audit     *fakeAudit
	registrar *fakeRegistrar
	resolver  *fakeResolver
	filter    *fakeFilter
	rec       *Reconciler
}

func newFixture(cfg config.ContentFilterConfig) *fixture {
	f := &fixture{
		store:     &fakeStore{},
		audit:     &fakeAudit{},
		registrar: &fakeRegistrar{},
		resolver:  &fakeResolver{servers: map[string][]string{}},
		filter:    &fakeFilter{statuses: contentfilter.StatusMap{}},
	}
	f.rec = New(f.store, f.audit, f.registrar, f.resolver, f.filter,
		cfg, nil, nil, logger.NewNopLogger())
	return f
}

func strp(s string) *string { return &s }

func TestSyncFromRegistrar(t *testing.T) {
	expiry := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)

	t.Run("inserts unknown domains", func(t *testing.T) {
		f := newFixture(config.ContentFilterConfig{})
		f.registrar.domains = []registrar.Domain{{
			ID: "101", Name: "new.com", Owner: "owner",
			Expires: expiry, AutoRenew: true, WhoisGuard: "ENABLED", IsOurDNS: true,
		}}

		result, err := f.rec.SyncFromRegistrar(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, result.Checked)
		assert.Equal(t, 1, result.Inserted)
		assert.Equal(t, 0, result.Updated)

		domain := f.store.byName("new.com")
		require.NotNil(t, domain)
		assert.Equal(t, "101", *domain.RegistrarID)
		assert.Equal(t, expiry, domain.ExpiryDate)
		assert.True(t, domain.Active)
		assert.True(t, domain.AutoRenew)
		require.NotNil(t, domain.UsesOwnDNS)
		assert.False(t, *domain.UsesOwnDNS)
		assert.Equal(t, []models.SyncKind{models.SyncKindRegistrar}, f.audit.recorded)
	})

	t.Run("registrar id match wins over name match", func(t *testing.T) {
		f := newFixture(config.ContentFilterConfig{})
		f.store.domains = []*models.Domain{
			{ID: 1, RegistrarID: strp("101"), Name: "old-name.com"},
			{ID: 2, Name: "renamed.com"},
		}
		f.registrar.domains = []registrar.Domain{{
			ID: "101", Name: "renamed.com", Expires: expiry,
		}}

		result, err := f.rec.SyncFromRegistrar(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, result.Updated)
		assert.Equal(t, 0, result.Inserted)

		// row 1 (the id match) got the new name; row 2 untouched
		require.Len(t, f.store.batches, 1)
		assert.Equal(t, int64(1), f.store.batches[0][0].ID)
		assert.Equal(t, "renamed.com", f.store.batches[0][0].Name)
	})

	t.Run("name match adopts the registrar id", func(t *testing.T) {
		f := newFixture(config.ContentFilterConfig{})
		f.store.domains = []*models.Domain{
			{ID: 1, Name: "manual.com"},
		}
		f.registrar.domains = []registrar.Domain{{
			ID: "202", Name: "manual.com", Expires: expiry,
		}}

		_, err := f.rec.SyncFromRegistrar(context.Background())

		require.NoError(t, err)
		domain := f.store.byName("manual.com")
		require.NotNil(t, domain.RegistrarID)
		assert.Equal(t, "202", *domain.RegistrarID)
	})

	t.Run("does not touch user-owned fields", func(t *testing.T) {
		f := newFixture(config.ContentFilterConfig{})
		f.store.domains = []*models.Domain{{
			ID: 1, RegistrarID: strp("101"), Name: "kept.com",
			Description: strp("my note"), Category: strp(models.CategoryMS),
			IsUsed: true, IsDefense: true, Blocked: true,
			NameServer1: strp("ns1.kept.net"),
		}}
		f.registrar.domains = []registrar.Domain{{
			ID: "101", Name: "kept.com", Expires: expiry,
		}}

		_, err := f.rec.SyncFromRegistrar(context.Background())

		require.NoError(t, err)
		domain := f.store.byName("kept.com")
		assert.Equal(t, "my note", *domain.Description)
		assert.Equal(t, models.CategoryMS, *domain.Category)
		assert.True(t, domain.IsUsed)
		assert.True(t, domain.IsDefense)
		assert.True(t, domain.Blocked)
		assert.Equal(t, "ns1.kept.net", *domain.NameServer1)
	})

	t.Run("second run with same data writes nothing", func(t *testing.T) {
		f := newFixture(config.ContentFilterConfig{})
		f.registrar.domains = []registrar.Domain{{
			ID: "101", Name: "stable.com", Expires: expiry, AutoRenew: true,
		}}

		_, err := f.rec.SyncFromRegistrar(context.Background())
		require.NoError(t, err)

		result, err := f.rec.SyncFromRegistrar(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 0, result.Inserted)
		assert.Equal(t, 0, result.Updated)
		assert.Empty(t, f.store.batches)
	})

	t.Run("expired domain is inactive", func(t *testing.T) {
		f := newFixture(config.ContentFilterConfig{})
		f.registrar.domains = []registrar.Domain{{
			ID: "101", Name: "expired.com", IsExpired: true,
			Expires: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		}}

		_, err := f.rec.SyncFromRegistrar(context.Background())

		require.NoError(t, err)
		domain := f.store.byName("expired.com")
		assert.True(t, domain.IsExpired)
		assert.False(t, domain.Active)
	})

	t.Run("registrar failure records nothing", func(t *testing.T) {
		f := newFixture(config.ContentFilterConfig{})
		f.registrar.err = errors.New("api down")

		_, err := f.rec.SyncFromRegistrar(context.Background())

		require.Error(t, err)
		assert.Empty(t, f.audit.recorded)
	})
}

func TestRefreshNameservers(t *testing.T) {
	t.Run("stores first two servers", func(t *testing.T) {
		f := newFixture(config.ContentFilterConfig{})
		f.store.domains = []*models.Domain{{ID: 1, Name: "a.com"}}
		f.resolver.servers["a.com"] = []string{"ns1.example.net", "ns2.example.net", "ns3.example.net"}

		result, err := f.rec.RefreshNameservers(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, result.Checked)
		assert.Equal(t, 1, result.Updated)

		domain := f.store.byName("a.com")
		assert.Equal(t, "ns1.example.net", *domain.NameServer1)
		assert.Equal(t, "ns2.example.net", *domain.NameServer2)
		assert.Equal(t, []models.SyncKind{models.SyncKindNameserver}, f.audit.recorded)
	})

	t.Run("single server clears the second slot", func(t *testing.T) {
		f := newFixture(config.ContentFilterConfig{})
		f.store.domains = []*models.Domain{{
			ID: 1, Name: "a.com",
			NameServer1: strp("ns1.old.net"), NameServer2: strp("ns2.old.net"),
		}}
		f.resolver.servers["a.com"] = []string{"ns1.new.net"}

		_, err := f.rec.RefreshNameservers(context.Background())

		require.NoError(t, err)
		domain := f.store.byName("a.com")
		assert.Equal(t, "ns1.new.net", *domain.NameServer1)
		assert.Nil(t, domain.NameServer2)
	})

	t.Run("failed lookup leaves stored servers alone", func(t *testing.T) {
		f := newFixture(config.ContentFilterConfig{})
		f.store.domains = []*models.Domain{{
			ID: 1, Name: "flaky.com",
			NameServer1: strp("ns1.kept.net"), NameServer2: strp("ns2.kept.net"),
		}}
		// no resolver entry: lookup returns empty

		result, err := f.rec.RefreshNameservers(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 0, result.Updated)
		domain := f.store.byName("flaky.com")
		assert.Equal(t, "ns1.kept.net", *domain.NameServer1)
		assert.Equal(t, "ns2.kept.net", *domain.NameServer2)
	})

	t.Run("unchanged servers write nothing", func(t *testing.T) {
		f := newFixture(config.ContentFilterConfig{})
		f.store.domains = []*models.Domain{{
			ID: 1, Name: "a.com",
			NameServer1: strp("ns1.example.net"), NameServer2: strp("ns2.example.net"),
		}}
		f.resolver.servers["a.com"] = []string{"ns1.example.net", "ns2.example.net"}

		result, err := f.rec.RefreshNameservers(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 0, result.Updated)
		assert.Empty(t, f.store.batches)
	})
}

func TestRefreshContentFilterStatus(t *testing.T) {
	t.Run("checks only used domains and flips changed rows", func(t *testing.T) {
		f := newFixture(config.ContentFilterConfig{})
		f.store.domains = []*models.Domain{
			{ID: 1, Name: "used-blocked.com", IsUsed: true},
			{ID: 2, Name: "used-clean.com", IsUsed: true, Blocked: true},
			{ID: 3, Name: "unused.com"},
		}
		f.filter.statuses = contentfilter.StatusMap{
			"used-blocked.com": true,
			"used-clean.com":   false,
		}

		result, err := f.rec.RefreshContentFilterStatus(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 2, result.Checked)
		assert.Equal(t, 2, result.Updated)

		require.Len(t, f.filter.checked, 1)
		assert.Equal(t, []string{"used-blocked.com", "used-clean.com"}, f.filter.checked[0])

		assert.True(t, f.store.byName("used-blocked.com").Blocked)
		assert.False(t, f.store.byName("used-clean.com").Blocked)
		assert.False(t, f.store.byName("unused.com").Blocked)
		assert.Equal(t, []models.SyncKind{models.SyncKindContentFilter}, f.audit.recorded)
	})

	t.Run("www alias answers for the bare name", func(t *testing.T) {
		f := newFixture(config.ContentFilterConfig{})
		f.store.domains = []*models.Domain{
			{ID: 1, Name: "www.site.com", IsUsed: true},
		}
		statuses := contentfilter.StatusMap{"site.com": true}
		f.filter.statuses = statuses

		result, err := f.rec.RefreshContentFilterStatus(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, result.Updated)
		assert.True(t, f.store.byName("www.site.com").Blocked)
	})

	t.Run("checker failure writes nothing", func(t *testing.T) {
		f := newFixture(config.ContentFilterConfig{})
		f.store.domains = []*models.Domain{{ID: 1, Name: "a.com", IsUsed: true}}
		f.filter.err = &contentfilter.IncompleteError{Missing: []string{"a.com"}}

		_, err := f.rec.RefreshContentFilterStatus(context.Background())

		require.Error(t, err)
		assert.Empty(t, f.store.batches)
		assert.Empty(t, f.audit.recorded)
	})

	t.Run("no used domains is a no-op", func(t *testing.T) {
		f := newFixture(config.ContentFilterConfig{})
		f.store.domains = []*models.Domain{{ID: 1, Name: "unused.com"}}

		result, err := f.rec.RefreshContentFilterStatus(context.Background())

		require.NoError(t, err)
		assert.Zero(t, result.Checked)
		assert.Empty(t, f.filter.checked)
	})
}

func TestApplyStatuses(t *testing.T) {
	f := newFixture(config.ContentFilterConfig{})
	f.store.domains = []*models.Domain{
		{ID: 1, Name: "a.com", IsUsed: true},
		{ID: 2, Name: "b.com", IsUsed: true, Blocked: true},
	}

	result, err := f.rec.ApplyStatuses(context.Background(), contentfilter.StatusMap{
		"a.com": true,
		"b.com": true,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 1, result.Updated)
	assert.True(t, f.store.byName("a.com").Blocked)
	assert.Equal(t, []models.SyncKind{models.SyncKindContentFilter}, f.audit.recorded)
}

func TestSyncRunsRegistrarThenNameservers(t *testing.T) {
	f := newFixture(config.ContentFilterConfig{})
	f.registrar.domains = []registrar.Domain{{
		ID: "1", Name: "a.com",
		Expires: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}}
	f.resolver.servers["a.com"] = []string{"ns1.example.net"}

	result, err := f.rec.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	// the freshly inserted domain gets its nameservers in the same run
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, "ns1.example.net", *f.store.byName("a.com").NameServer1)
	// the composed run audits as a single registrar sync
	assert.Equal(t, []models.SyncKind{models.SyncKindRegistrar}, f.audit.recorded)
}

func TestRenewRefreshesRegistrarFields(t *testing.T) {
	f := newFixture(config.ContentFilterConfig{})
	f.registrar.domains = []registrar.Domain{{
		ID: "1", Name: "a.com",
		Expires: time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC),
	}}

	result, err := f.rec.Renew(context.Background(), "a.com", 1)

	require.NoError(t, err)
	assert.Equal(t, "a.com", result.DomainName)
	// the post-command refresh pulled the portfolio and stored the row
	require.NotNil(t, f.store.byName("a.com"))
	assert.Equal(t, []models.SyncKind{models.SyncKindRegistrar}, f.audit.recorded)
}
