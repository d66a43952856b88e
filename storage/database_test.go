package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	store, err := NewStore(filepath.Join(t.TempDir(), "threads.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_AccountRoundTrip(t *testing.T) {
	store := newTestStore(t)

	acc := &Account{Username: "alice", Password: "secret"}
	require.NoError(t, store.CreateAccount(acc))
	require.NotEmpty(t, acc.ID)

	got, err := store.GetAccount(acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, AccountStatusPending, got.Status)
	assert.Nil(t, got.Cookies)

	require.NoError(t, store.UpdateAccountAuth(acc.ID, AccountStatusLive, `[{"name":"sessionid","domain":".threads.net"}]`))
	got, err = store.GetAccount(acc.ID)
	require.NoError(t, err)
	assert.Equal(t, AccountStatusLive, got.Status)
	require.NotNil(t, got.Cookies)
	assert.Contains(t, *got.Cookies, "sessionid")

	require.NoError(t, store.UpdateAccountMetrics(acc.ID, 150, 42, 7))
	got, err = store.GetAccount(acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 150, got.FollowerCount)
	assert.Equal(t, 42, got.FollowingCount)
	assert.Equal(t, 7, got.PostCount)
}

func TestStore_AccountNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetAccount("missing-id")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.UpdateAccountStatus("missing-id", AccountStatusError), ErrNotFound)
	assert.ErrorIs(t, store.UpdateAccountCookies("missing-id", "[]"), ErrNotFound)
}

func TestStore_AccountProxyLoaded(t *testing.T) {
	store := newTestStore(t)

	user := "puser"
	pass := "ppass"
	proxy := &Proxy{Protocol: "http", Host: "10.0.0.1", Port: 8080, Username: &user, Password: &pass}
	require.NoError(t, store.CreateProxy(proxy))

	acc := &Account{Username: "bob", Password: "pw", ProxyID: &proxy.ID}
	require.NoError(t, store.CreateAccount(acc))

	got, err := store.GetAccount(acc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Proxy)
	assert.Equal(t, "10.0.0.1", got.Proxy.Host)
	assert.Equal(t, 8080, got.Proxy.Port)
}

func TestStore_ImportAccountsSkipsInvalid(t *testing.T) {
	store := newTestStore(t)

	created, err := store.ImportAccounts([]string{
		"alice:pw1",
		"bob|pw2",
		"not-a-valid-line",
		"",
		"alice:duplicate",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	accounts, err := store.ListAccounts()
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestStore_ImportProxiesSkipsInvalid(t *testing.T) {
	store := newTestStore(t)

	created, err := store.ImportProxies([]string{
		"http://proxy1.example.com:8080",
		"1.2.3.4:3128:user:pass",
		"garbage line",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created)
}

func TestStore_CreatePostRequiresContentOrMedia(t *testing.T) {
	store := newTestStore(t)

	assert.Error(t, store.CreatePost(&Post{}))

	post, err := NewPost("hello", nil)
	require.NoError(t, err)
	require.NoError(t, store.CreatePost(post))

	got, err := store.GetPost(post.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Content)
	assert.Equal(t, "hello", *got.Content)
}

func TestStore_CampaignLifecycle(t *testing.T) {
	store := newTestStore(t)

	post, err := NewPost("campaign content", nil)
	require.NoError(t, err)
	require.NoError(t, store.CreatePost(post))

	var accountIDs []string
	for _, name := range []string{"a1", "a2", "a3"} {
		acc := &Account{Username: name, Password: "pw"}
		require.NoError(t, store.CreateAccount(acc))
		accountIDs = append(accountIDs, acc.ID)
	}

	c := &Campaign{Name: "launch", PostID: post.ID, DelayMin: 5, DelayMax: 10}
	require.NoError(t, store.CreateCampaign(c, accountIDs))

	got, err := store.GetCampaign(c.ID)
	require.NoError(t, err)
	assert.Equal(t, CampaignStatusDraft, got.Status)
	require.NotNil(t, got.Post)
	require.Len(t, got.Accounts, 3)
	for _, join := range got.Accounts {
		assert.Equal(t, JoinStatusPending, join.Status)
		require.NotNil(t, join.Account)
	}

	// Resolve two joins, leave one pending.
	require.NoError(t, store.UpdateCampaignAccountStatus(got.Accounts[0].ID, JoinStatusSuccess, nil))
	msg := "login failed"
	require.NoError(t, store.UpdateCampaignAccountStatus(got.Accounts[1].ID, JoinStatusFailed, &msg))

	pending, err := store.CampaignHasPending(c.ID)
	require.NoError(t, err)
	assert.True(t, pending)

	// GetCampaign only returns joins that are still pending.
	got, err = store.GetCampaign(c.ID)
	require.NoError(t, err)
	assert.Len(t, got.Accounts, 1)

	require.NoError(t, store.UpdateCampaignAccountStatus(got.Accounts[0].ID, JoinStatusSuccess, nil))
	pending, err = store.CampaignHasPending(c.ID)
	require.NoError(t, err)
	assert.False(t, pending)

	require.NoError(t, store.UpdateCampaignStatus(c.ID, CampaignStatusCompleted))
	got, err = store.GetCampaign(c.ID)
	require.NoError(t, err)
	assert.Equal(t, CampaignStatusCompleted, got.Status)
}

func TestStore_ListDueScheduledCampaigns(t *testing.T) {
	store := newTestStore(t)

	post, err := NewPost("scheduled content", nil)
	require.NoError(t, err)
	require.NoError(t, store.CreatePost(post))

	acc := &Account{Username: "sched", Password: "pw"}
	require.NoError(t, store.CreateAccount(acc))

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	// A scheduled_at in the past plus empty status becomes SCHEDULED.
	due := &Campaign{Name: "due", PostID: post.ID, ScheduledAt: &past}
	require.NoError(t, store.CreateCampaign(due, []string{acc.ID}))
	assert.Equal(t, CampaignStatusScheduled, due.Status)

	notYet := &Campaign{Name: "not yet", PostID: post.ID, ScheduledAt: &future}
	require.NoError(t, store.CreateCampaign(notYet, []string{acc.ID}))

	// Already-fired campaigns are never picked up again.
	fired := &Campaign{Name: "fired", PostID: post.ID, ScheduledAt: &past, Status: CampaignStatusCompleted}
	require.NoError(t, store.CreateCampaign(fired, []string{acc.ID}))

	list, err := store.ListDueScheduledCampaigns(now)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "due", list[0].Name)
}

func TestStore_FarmCampaignLifecycle(t *testing.T) {
	store := newTestStore(t)

	fc := &FarmConfig{
		EnableLike:     true,
		EnableFollow:   true,
		LikeCountMin:   3,
		LikeCountMax:   10,
		FollowCountMin: 1,
		FollowCountMax: 5,
		ScrollTimeMin:  60,
		ScrollTimeMax:  300,
	}
	require.NoError(t, store.CreateFarmConfig(fc))

	var accountIDs []string
	for _, name := range []string{"f1", "f2"} {
		acc := &Account{Username: name, Password: "pw"}
		require.NoError(t, store.CreateAccount(acc))
		accountIDs = append(accountIDs, acc.ID)
	}

	c := &FarmCampaign{Name: "warmup", ConfigID: fc.ID, DelayMin: 10, DelayMax: 30}
	require.NoError(t, store.CreateFarmCampaign(c, accountIDs))

	joins, err := store.ListPendingFarmAccounts(c.ID)
	require.NoError(t, err)
	require.Len(t, joins, 2)

	join, err := store.GetFarmCampaignAccount(joins[0].ID)
	require.NoError(t, err)
	require.NotNil(t, join.Account)
	require.NotNil(t, join.FarmCampaign)
	require.NotNil(t, join.FarmCampaign.Config)
	assert.Equal(t, 10, join.FarmCampaign.Config.LikeCountMax)

	require.NoError(t, store.UpdateFarmCampaignAccountStatus(joins[0].ID, JoinStatusSuccess, nil))
	pending, err := store.FarmCampaignHasPending(c.ID)
	require.NoError(t, err)
	assert.True(t, pending)

	require.NoError(t, store.UpdateFarmCampaignAccountStatus(joins[1].ID, JoinStatusFailed, nil))
	pending, err = store.FarmCampaignHasPending(c.ID)
	require.NoError(t, err)
	assert.False(t, pending)

	_, err = store.GetFarmCampaignAccount("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
