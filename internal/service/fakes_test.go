package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sakif/watch-storefront/internal/apperror"
	"github.com/sakif/watch-storefront/internal/model"
	"github.com/sakif/watch-storefront/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore is a hand-written, in-memory implementation of every repository
// interface. Tests read its maps directly to check what was written, and set
// the *Err fields to simulate a database failure.

type fakeStore struct {
	mu sync.Mutex

	users     map[string]*model.User
	downloads []model.CatalogDownload
	purchases []model.Purchase
	referrals map[string]*model.ReferralCode // keyed by user ID
	nextID    int

	createDownloadErr error
	createPurchaseErr error
	countErr          error
	createReferralErr error // returned once, then cleared
}

var (
	_ repository.UserRepository     = (*fakeStore)(nil)
	_ repository.CatalogRepository  = (*fakeStore)(nil)
	_ repository.PurchaseRepository = (*fakeStore)(nil)
	_ repository.ReferralRepository = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[string]*model.User),
		referrals: make(map[string]*model.ReferralCode),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// --- users ---

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return apperror.Conflict("USER_ALREADY_EXISTS", "a user with this email already exists")
		}
	}
	u.ID = f.id("user")
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, apperror.NotFound("USER_NOT_FOUND", "user not found")
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, apperror.NotFound("USER_NOT_FOUND", "user not found")
}

func (f *fakeStore) GetUserByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.GitHubID != nil && *u.GitHubID == githubID {
			c := *u
			return &c, nil
		}
	}
	return nil, apperror.NotFound("USER_NOT_FOUND", "user not found")
}

func (f *fakeStore) LinkGitHub(_ context.Context, userID string, githubID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("USER_NOT_FOUND", "user not found")
	}
	u.GitHubID = &githubID
	return nil
}

// --- catalog downloads ---

func (f *fakeStore) CreateDownload(_ context.Context, d *model.CatalogDownload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createDownloadErr != nil {
		return f.createDownloadErr
	}
	if d.ReferredBy != nil && d.Email != nil {
		for _, existing := range f.downloads {
			if existing.ReferredBy != nil && *existing.ReferredBy == *d.ReferredBy &&
				existing.Email != nil && *existing.Email == *d.Email {
				return apperror.Conflict("ALREADY_REFERRED", "This email has already used this referral code")
			}
		}
	}
	d.ID = f.id("dl")
	if d.DownloadedAt.IsZero() {
		d.DownloadedAt = time.Now()
	}
	f.downloads = append(f.downloads, *d)
	return nil
}

func (f *fakeStore) ListDownloadsByUser(_ context.Context, userID string, opts repository.ListOptions) ([]model.CatalogDownload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CatalogDownload
	for _, d := range f.downloads {
		if d.UserID != nil && *d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DownloadedAt.After(out[j].DownloadedAt) })
	return paginate(out, opts), nil
}

func (f *fakeStore) CountDownloadsReferredBy(_ context.Context, referrerID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, d := range f.downloads {
		if d.ReferredBy != nil && *d.ReferredBy == referrerID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ReferredDownloadExists(_ context.Context, email, referrerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.downloads {
		if d.Email != nil && *d.Email == email && d.ReferredBy != nil && *d.ReferredBy == referrerID {
			return true, nil
		}
	}
	return false, nil
}

// --- purchases ---

func (f *fakeStore) CreatePurchase(_ context.Context, p *model.Purchase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createPurchaseErr != nil {
		return f.createPurchaseErr
	}
	p.ID = f.id("purchase")
	p.CreatedAt = time.Now()
	f.purchases = append(f.purchases, *p)
	return nil
}

func (f *fakeStore) ListPurchasesByUser(_ context.Context, userID string, opts repository.ListOptions) ([]model.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Purchase
	for _, p := range f.purchases {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PurchaseDate.After(out[j].PurchaseDate) })
	return paginate(out, opts), nil
}

func (f *fakeStore) CountPurchasesByUser(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, p := range f.purchases {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

// --- referral codes ---

func (f *fakeStore) CreateReferralCode(_ context.Context, ref *model.ReferralCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createReferralErr; err != nil {
		f.createReferralErr = nil
		return err
	}
	if _, ok := f.referrals[ref.UserID]; ok {
		return apperror.Conflict(repository.CodeReferralUserExists, "user already has a referral code")
	}
	for _, r := range f.referrals {
		if r.Code == ref.Code {
			return apperror.Conflict(repository.CodeReferralCodeTaken, "referral code already in use")
		}
	}
	ref.ID = f.id("ref")
	ref.CreatedAt = time.Now()
	stored := *ref
	f.referrals[ref.UserID] = &stored
	return nil
}

func (f *fakeStore) GetReferralCodeByUser(_ context.Context, userID string) (*model.ReferralCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.referrals[userID]; ok {
		c := *r
		return &c, nil
	}
	return nil, apperror.NotFound("INVALID_REFERRAL_CODE", "Referral code not found")
}

func (f *fakeStore) GetReferralCodeByCode(_ context.Context, code string) (*model.ReferralCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.referrals {
		if r.Code == code {
			c := *r
			return &c, nil
		}
	}
	return nil, apperror.NotFound("INVALID_REFERRAL_CODE", "Referral code not found")
}

func (f *fakeStore) ReferralCodeExists(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.referrals {
		if r.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func paginate[T any](rows []T, opts repository.ListOptions) []T {
	if opts.Offset >= len(rows) {
		return []T{}
	}
	rows = rows[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(rows) {
		rows = rows[:opts.Limit]
	}
	return rows
}

// quietLogger only shows errors, keeping test output readable.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
