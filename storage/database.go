package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned by lookups for an unknown id. Callers must be able
// to distinguish it from an empty result set.
var ErrNotFound = errors.New("record not found")

// Store is the SQLite-backed record store shared by all automation flows.
// Writes are scoped to a single record by primary key; concurrent flows never
// write the same record, so last-writer-wins is acceptable.
type Store struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewStore opens (creating if necessary) the database at dbPath.
func NewStore(dbPath string, logger *logrus.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Record store initialized")
	return s, nil
}

func (s *Store) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS proxies (
			id TEXT PRIMARY KEY,
			protocol TEXT NOT NULL,
			host TEXT NOT NULL,
			port INTEGER NOT NULL,
			username TEXT,
			password TEXT,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			cookies TEXT,
			user_agent TEXT,
			follower_count INTEGER NOT NULL DEFAULT 0,
			following_count INTEGER NOT NULL DEFAULT 0,
			post_count INTEGER NOT NULL DEFAULT 0,
			proxy_id TEXT REFERENCES proxies(id),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			content TEXT,
			media_paths TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS campaigns (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			post_id TEXT NOT NULL REFERENCES posts(id),
			delay_min INTEGER NOT NULL DEFAULT 30,
			delay_max INTEGER NOT NULL DEFAULT 120,
			scheduled_at DATETIME,
			status TEXT NOT NULL DEFAULT 'DRAFT',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS campaign_accounts (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL REFERENCES campaigns(id),
			account_id TEXT NOT NULL REFERENCES accounts(id),
			status TEXT NOT NULL DEFAULT 'PENDING',
			error_log TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS farm_configs (
			id TEXT PRIMARY KEY,
			enable_like INTEGER NOT NULL DEFAULT 1,
			enable_follow INTEGER NOT NULL DEFAULT 0,
			like_count_min INTEGER NOT NULL DEFAULT 0,
			like_count_max INTEGER NOT NULL DEFAULT 0,
			follow_count_min INTEGER NOT NULL DEFAULT 0,
			follow_count_max INTEGER NOT NULL DEFAULT 0,
			scroll_time_min INTEGER NOT NULL DEFAULT 60,
			scroll_time_max INTEGER NOT NULL DEFAULT 300
		)`,
		`CREATE TABLE IF NOT EXISTS farm_campaigns (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			config_id TEXT NOT NULL REFERENCES farm_configs(id),
			delay_min INTEGER NOT NULL DEFAULT 30,
			delay_max INTEGER NOT NULL DEFAULT 120,
			status TEXT NOT NULL DEFAULT 'DRAFT',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS farm_campaign_accounts (
			id TEXT PRIMARY KEY,
			farm_campaign_id TEXT NOT NULL REFERENCES farm_campaigns(id),
			account_id TEXT NOT NULL REFERENCES accounts(id),
			status TEXT NOT NULL DEFAULT 'PENDING',
			error_log TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_username ON accounts(username)`,
		`CREATE INDEX IF NOT EXISTS idx_campaign_accounts_campaign ON campaign_accounts(campaign_id)`,
		`CREATE INDEX IF NOT EXISTS idx_campaign_accounts_status ON campaign_accounts(status)`,
		`CREATE INDEX IF NOT EXISTS idx_farm_campaign_accounts_campaign ON farm_campaign_accounts(farm_campaign_id)`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Accounts ---

// CreateAccount inserts a new account. A zero ID is assigned.
func (s *Store) CreateAccount(a *Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = AccountStatusPending
	}
	_, err := s.db.Exec(
		`INSERT INTO accounts (id, username, password, status, cookies, user_agent, proxy_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.Password, a.Status, a.Cookies, a.UserAgent, a.ProxyID)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	s.logger.WithField("username", a.Username).Debug("Account created")
	return nil
}

// GetAccount fetches an account with its proxy, if one is assigned.
func (s *Store) GetAccount(id string) (*Account, error) {
	var a Account
	err := s.db.Get(&a, `SELECT * FROM accounts WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if a.ProxyID != nil {
		proxy, err := s.GetProxy(*a.ProxyID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		a.Proxy = proxy
	}
	return &a, nil
}

// ListAccounts returns all accounts ordered by creation time.
func (s *Store) ListAccounts() ([]*Account, error) {
	var accounts []*Account
	if err := s.db.Select(&accounts, `SELECT * FROM accounts ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// UpdateAccountStatus writes only the authentication status.
func (s *Store) UpdateAccountStatus(id, status string) error {
	res, err := s.db.Exec(
		`UPDATE accounts SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	return s.requireRow(res, "account", id)
}

// UpdateAccountAuth writes status and the captured cookie payload together.
// Cookies are written only after a full successful capture, never partially.
func (s *Store) UpdateAccountAuth(id, status, cookies string) error {
	res, err := s.db.Exec(
		`UPDATE accounts SET status = ?, cookies = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, cookies, id)
	if err != nil {
		return fmt.Errorf("failed to update account auth: %w", err)
	}
	return s.requireRow(res, "account", id)
}

// UpdateAccountCookies refreshes only the cookie payload.
func (s *Store) UpdateAccountCookies(id, cookies string) error {
	res, err := s.db.Exec(
		`UPDATE accounts SET cookies = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, cookies, id)
	if err != nil {
		return fmt.Errorf("failed to update account cookies: %w", err)
	}
	return s.requireRow(res, "account", id)
}

// UpdateAccountMetrics writes scraped profile statistics.
func (s *Store) UpdateAccountMetrics(id string, followers, following, posts int) error {
	res, err := s.db.Exec(
		`UPDATE accounts SET follower_count = ?, following_count = ?, post_count = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		followers, following, posts, id)
	if err != nil {
		return fmt.Errorf("failed to update account metrics: %w", err)
	}
	return s.requireRow(res, "account", id)
}

// ImportAccounts bulk-creates accounts from "username:password" lines.
// Invalid lines and duplicate usernames are skipped; the count of created
// accounts is returned.
func (s *Store) ImportAccounts(lines []string) (int, error) {
	created := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		username, password, err := ParseAccountLine(line)
		if err != nil {
			s.logger.WithError(err).Warn("Skipping invalid account line")
			continue
		}
		acc := &Account{Username: username, Password: password}
		if err := s.CreateAccount(acc); err != nil {
			s.logger.WithField("username", username).WithError(err).Warn("Skipping account import")
			continue
		}
		created++
	}
	return created, nil
}

// --- Proxies ---

// CreateProxy inserts a new proxy.
func (s *Store) CreateProxy(p *Proxy) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = "ACTIVE"
	}
	_, err := s.db.Exec(
		`INSERT INTO proxies (id, protocol, host, port, username, password, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Protocol, p.Host, p.Port, p.Username, p.Password, p.Status)
	if err != nil {
		return fmt.Errorf("failed to create proxy: %w", err)
	}
	return nil
}

// GetProxy fetches one proxy by id.
func (s *Store) GetProxy(id string) (*Proxy, error) {
	var p Proxy
	err := s.db.Get(&p, `SELECT * FROM proxies WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("proxy %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get proxy: %w", err)
	}
	return &p, nil
}

// ImportProxies bulk-creates proxies from text lines (see ParseProxyLine).
func (s *Store) ImportProxies(lines []string) (int, error) {
	created := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		p, err := ParseProxyLine(line)
		if err != nil {
			s.logger.WithError(err).Warn("Skipping invalid proxy line")
			continue
		}
		if err := s.CreateProxy(p); err != nil {
			s.logger.WithError(err).Warn("Skipping proxy import")
			continue
		}
		created++
	}
	return created, nil
}

// --- Posts ---

// CreatePost inserts a new post. At least one of content or media is required.
func (s *Store) CreatePost(p *Post) error {
	if (p.Content == nil || *p.Content == "") && len(p.MediaList()) == 0 {
		return fmt.Errorf("post requires text content or media")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO posts (id, content, media_paths) VALUES (?, ?, ?)`,
		p.ID, p.Content, p.MediaPaths)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// NewPost builds a Post from text and media paths.
func NewPost(content string, mediaPaths []string) (*Post, error) {
	p := &Post{}
	if content != "" {
		p.Content = &content
	}
	if len(mediaPaths) > 0 {
		raw, err := json.Marshal(mediaPaths)
		if err != nil {
			return nil, fmt.Errorf("failed to encode media paths: %w", err)
		}
		encoded := string(raw)
		p.MediaPaths = &encoded
	}
	return p, nil
}

// GetPost fetches one post by id.
func (s *Store) GetPost(id string) (*Post, error) {
	var p Post
	err := s.db.Get(&p, `SELECT * FROM posts WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &p, nil
}

// --- Campaigns ---

// CreateCampaign inserts a campaign and a PENDING join record per account.
func (s *Store) CreateCampaign(c *Campaign, accountIDs []string) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		if c.ScheduledAt != nil {
			c.Status = CampaignStatusScheduled
		} else {
			c.Status = CampaignStatusDraft
		}
	}
	_, err := s.db.Exec(
		`INSERT INTO campaigns (id, name, post_id, delay_min, delay_max, scheduled_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.PostID, c.DelayMin, c.DelayMax, c.ScheduledAt, c.Status)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	for _, accountID := range accountIDs {
		_, err := s.db.Exec(
			`INSERT INTO campaign_accounts (id, campaign_id, account_id, status)
			 VALUES (?, ?, ?, ?)`,
			uuid.NewString(), c.ID, accountID, JoinStatusPending)
		if err != nil {
			return fmt.Errorf("failed to create campaign account: %w", err)
		}
	}
	return nil
}

// GetCampaign fetches a campaign with its post and pending join records,
// each join record carrying its account and proxy.
func (s *Store) GetCampaign(id string) (*Campaign, error) {
	var c Campaign
	err := s.db.Get(&c, `SELECT * FROM campaigns WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	post, err := s.GetPost(c.PostID)
	if err != nil {
		return nil, err
	}
	c.Post = post

	var joins []*CampaignAccount
	err = s.db.Select(&joins,
		`SELECT * FROM campaign_accounts WHERE campaign_id = ? AND status = ?`,
		id, JoinStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign accounts: %w", err)
	}
	for _, join := range joins {
		account, err := s.GetAccount(join.AccountID)
		if err != nil {
			return nil, err
		}
		join.Account = account
	}
	c.Accounts = joins
	return &c, nil
}

// UpdateCampaignStatus writes the aggregate campaign status.
func (s *Store) UpdateCampaignStatus(id, status string) error {
	res, err := s.db.Exec(`UPDATE campaigns SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}
	return s.requireRow(res, "campaign", id)
}

// UpdateCampaignAccountStatus writes a join record's status and error text.
func (s *Store) UpdateCampaignAccountStatus(id, status string, errorLog *string) error {
	res, err := s.db.Exec(
		`UPDATE campaign_accounts SET status = ?, error_log = ? WHERE id = ?`,
		status, errorLog, id)
	if err != nil {
		return fmt.Errorf("failed to update campaign account: %w", err)
	}
	return s.requireRow(res, "campaign account", id)
}

// CampaignHasPending reports whether any join record is still pending.
func (s *Store) CampaignHasPending(campaignID string) (bool, error) {
	var count int
	err := s.db.Get(&count,
		`SELECT COUNT(*) FROM campaign_accounts WHERE campaign_id = ? AND status = ?`,
		campaignID, JoinStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to count pending campaign accounts: %w", err)
	}
	return count > 0, nil
}

// ListDueScheduledCampaigns returns SCHEDULED campaigns whose start time has
// passed.
func (s *Store) ListDueScheduledCampaigns(now time.Time) ([]*Campaign, error) {
	var campaigns []*Campaign
	err := s.db.Select(&campaigns,
		`SELECT * FROM campaigns WHERE status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?`,
		CampaignStatusScheduled, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due campaigns: %w", err)
	}
	return campaigns, nil
}

// --- Farm campaigns ---

// CreateFarmConfig inserts an engagement config.
func (s *Store) CreateFarmConfig(c *FarmConfig) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO farm_configs (id, enable_like, enable_follow, like_count_min, like_count_max,
		 follow_count_min, follow_count_max, scroll_time_min, scroll_time_max)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.EnableLike, c.EnableFollow, c.LikeCountMin, c.LikeCountMax,
		c.FollowCountMin, c.FollowCountMax, c.ScrollTimeMin, c.ScrollTimeMax)
	if err != nil {
		return fmt.Errorf("failed to create farm config: %w", err)
	}
	return nil
}

// GetFarmConfig fetches one engagement config by id.
func (s *Store) GetFarmConfig(id string) (*FarmConfig, error) {
	var c FarmConfig
	err := s.db.Get(&c, `SELECT * FROM farm_configs WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("farm config %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get farm config: %w", err)
	}
	return &c, nil
}

// CreateFarmCampaign inserts a farm campaign and a PENDING join record per
// account.
func (s *Store) CreateFarmCampaign(c *FarmCampaign, accountIDs []string) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	_, err := s.db.Exec(
		`INSERT INTO farm_campaigns (id, name, config_id, delay_min, delay_max, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.ConfigID, c.DelayMin, c.DelayMax, c.Status)
	if err != nil {
		return fmt.Errorf("failed to create farm campaign: %w", err)
	}
	for _, accountID := range accountIDs {
		_, err := s.db.Exec(
			`INSERT INTO farm_campaign_accounts (id, farm_campaign_id, account_id, status)
			 VALUES (?, ?, ?, ?)`,
			uuid.NewString(), c.ID, accountID, JoinStatusPending)
		if err != nil {
			return fmt.Errorf("failed to create farm campaign account: %w", err)
		}
	}
	return nil
}

// GetFarmCampaign fetches a farm campaign with its config.
func (s *Store) GetFarmCampaign(id string) (*FarmCampaign, error) {
	var c FarmCampaign
	err := s.db.Get(&c, `SELECT * FROM farm_campaigns WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("farm campaign %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get farm campaign: %w", err)
	}
	config, err := s.GetFarmConfig(c.ConfigID)
	if err != nil {
		return nil, err
	}
	c.Config = config
	return &c, nil
}

// ListPendingFarmAccounts returns the pending join records of a farm campaign.
func (s *Store) ListPendingFarmAccounts(farmCampaignID string) ([]*FarmCampaignAccount, error) {
	var joins []*FarmCampaignAccount
	err := s.db.Select(&joins,
		`SELECT * FROM farm_campaign_accounts WHERE farm_campaign_id = ? AND status = ?`,
		farmCampaignID, JoinStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list farm campaign accounts: %w", err)
	}
	return joins, nil
}

// GetFarmCampaignAccount fetches one join record with its account (and proxy)
// and its farm campaign (and config).
func (s *Store) GetFarmCampaignAccount(id string) (*FarmCampaignAccount, error) {
	var join FarmCampaignAccount
	err := s.db.Get(&join, `SELECT * FROM farm_campaign_accounts WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("farm campaign account %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get farm campaign account: %w", err)
	}

	account, err := s.GetAccount(join.AccountID)
	if err != nil {
		return nil, err
	}
	join.Account = account

	campaign, err := s.GetFarmCampaign(join.FarmCampaignID)
	if err != nil {
		return nil, err
	}
	join.FarmCampaign = campaign
	return &join, nil
}

// UpdateFarmCampaignAccountStatus writes a join record's status and error text.
func (s *Store) UpdateFarmCampaignAccountStatus(id, status string, errorLog *string) error {
	res, err := s.db.Exec(
		`UPDATE farm_campaign_accounts SET status = ?, error_log = ? WHERE id = ?`,
		status, errorLog, id)
	if err != nil {
		return fmt.Errorf("failed to update farm campaign account: %w", err)
	}
	return s.requireRow(res, "farm campaign account", id)
}

// UpdateFarmCampaignStatus writes the aggregate farm campaign status.
func (s *Store) UpdateFarmCampaignStatus(id, status string) error {
	res, err := s.db.Exec(`UPDATE farm_campaigns SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update farm campaign status: %w", err)
	}
	return s.requireRow(res, "farm campaign", id)
}

// FarmCampaignHasPending reports whether any join record is still pending.
func (s *Store) FarmCampaignHasPending(farmCampaignID string) (bool, error) {
	var count int
	err := s.db.Get(&count,
		`SELECT COUNT(*) FROM farm_campaign_accounts WHERE farm_campaign_id = ? AND status = ?`,
		farmCampaignID, JoinStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to count pending farm campaign accounts: %w", err)
	}
	return count > 0, nil
}

func (s *Store) requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
