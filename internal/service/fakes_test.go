package service_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	appErrors "github.com/unclebandit/civic-notify/internal/errors"
	"github.com/unclebandit/civic-notify/internal/model"
	"github.com/unclebandit/civic-notify/internal/transport"
)

// --- Campaigns ---

type MockCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[int]*model.Campaign
	counters  [][2]int // every UpdateCounters call, in order
	nextID    int

	runID     string
	heartbeat time.Time
}

func newMockCampaignRepo(campaigns ...*model.Campaign) *MockCampaignRepo {
	m := &MockCampaignRepo{campaigns: map[int]*model.Campaign{}}
	for _, c := range campaigns {
		m.campaigns[c.ID] = c
		if c.ID > m.nextID {
			m.nextID = c.ID
		}
	}
	return m
}

func (m *MockCampaignRepo) Create(ctx context.Context, c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *MockCampaignRepo) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m *MockCampaignRepo) ListCampaigns(ctx context.Context, offset, limit int, audienceType, status string) ([]*model.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*model.Campaign
	for _, c := range m.campaigns {
		if audienceType != "" && c.AudienceType != audienceType {
			continue
		}
		if status != "" && string(c.Status) != status {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if offset >= total {
		return []*model.Campaign{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *MockCampaignRepo) TransitionStatus(ctx context.Context, id int, from []model.CampaignStatus, to model.CampaignStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if c.Status == s {
			c.Status = to
			now := time.Now()
			if to == model.StatusSending && c.StartedAt == nil {
				c.StartedAt = &now
			}
			if to == model.StatusCompleted {
				c.CompletedAt = &now
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *MockCampaignRepo) SetTotalRecipients(ctx context.Context, id, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[id].TotalRecipients = total
	return nil
}

func (m *MockCampaignRepo) UpdateCounters(ctx context.Context, id, sent, failed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[id].SentCount = sent
	m.campaigns[id].FailedCount = failed
	m.counters = append(m.counters, [2]int{sent, failed})
	return nil
}

func (m *MockCampaignRepo) AcquireRun(ctx context.Context, id int, runID string, staleAfter time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return false, nil
	}
	if m.runID != "" && m.runID != runID && time.Since(m.heartbeat) < staleAfter {
		return false, nil
	}
	m.runID, m.heartbeat = runID, time.Now()
	return true, nil
}

func (m *MockCampaignRepo) ReleaseRun(ctx context.Context, id int, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runID == runID {
		m.runID = ""
	}
	return nil
}

// holdLease plants a lease owned by some other run.
func (m *MockCampaignRepo) holdLease(runID string, heartbeat time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runID, m.heartbeat = runID, heartbeat
}

func (m *MockCampaignRepo) lease() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runID
}

func (m *MockCampaignRepo) setStatus(id int, status model.CampaignStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[id].Status = status
}

func (m *MockCampaignRepo) get(id int) model.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.campaigns[id]
}

// --- Campaign recipients ---

type MockRecipientRowRepo struct {
	mu     sync.Mutex
	rows   []*model.CampaignRecipient
	marked int

	failMark map[string]int // email -> MarkResult calls left to fail
}

func (m *MockRecipientRowRepo) CreatePending(ctx context.Context, campaignID int, emails []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := 0
	for _, e := range emails {
		exists := false
		for _, r := range m.rows {
			if r.CampaignID == campaignID && r.Email == e {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		m.rows = append(m.rows, &model.CampaignRecipient{
			ID:         len(m.rows) + 1,
			CampaignID: campaignID,
			Email:      e,
			Status:     model.RecipientPending,
			CreatedAt:  time.Now(),
		})
		created++
	}
	return created, nil
}

func (m *MockRecipientRowRepo) ListPending(ctx context.Context, campaignID int) ([]model.CampaignRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.CampaignRecipient{}
	for _, r := range m.rows {
		if r.CampaignID == campaignID && r.Status == model.RecipientPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *MockRecipientRowRepo) MarkResult(ctx context.Context, id int, status, errorDetail string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID != id || r.Status != model.RecipientPending {
			continue
		}
		if m.failMark[r.Email] > 0 {
			m.failMark[r.Email]--
			return false, errors.New("connection reset")
		}
		r.Status = status
		r.ErrorDetail = errorDetail
		if status == model.RecipientSent {
			now := time.Now()
			r.SentAt = &now
		}
		m.marked++
		return true, nil
	}
	return false, nil
}

func (m *MockRecipientRowRepo) GetCampaignStats(ctx context.Context, campaignID int) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := map[string]int{"total": 0, "pending": 0, "sent": 0, "failed": 0}
	for _, r := range m.rows {
		if r.CampaignID == campaignID {
			stats[r.Status]++
			stats["total"]++
		}
	}
	return stats, nil
}

func (m *MockRecipientRowRepo) count(campaignID int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.CampaignID == campaignID {
			n++
		}
	}
	return n
}

// --- Templates, preferences, directory, settings ---

type MockTemplateRepo struct {
	templates map[string]*model.Template
}

func (m *MockTemplateRepo) GetActiveByKey(ctx context.Context, key string) (*model.Template, error) {
	t, ok := m.templates[key]
	if !ok || !t.IsActive {
		return nil, appErrors.NewTemplateNotFound(key)
	}
	cp := *t
	return &cp, nil
}

type MockPreferenceRepo struct {
	byUser  map[int]*model.NotificationPreference
	byEmail map[string]*model.NotificationPreference
	err     error
}

func (m *MockPreferenceRepo) GetByUserID(ctx context.Context, userID int) (*model.NotificationPreference, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byUser[userID], nil
}

func (m *MockPreferenceRepo) GetByEmail(ctx context.Context, email string) (*model.NotificationPreference, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byEmail[strings.ToLower(email)], nil
}

func (m *MockPreferenceRepo) GloballyDisabled(ctx context.Context, emails []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, e := range emails {
		if p := m.byEmail[e]; p != nil && !p.EmailEnabled {
			out[e] = true
		}
	}
	return out, nil
}

type MockDirectory struct {
	users []model.Recipient
	roles map[string][]string // role -> emails
	munis map[int][]string    // municipality -> emails
}

func (m *MockDirectory) GetByID(ctx context.Context, id int) (*model.Recipient, error) {
	for _, u := range m.users {
		if u.ID == id {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockDirectory) GetByEmail(ctx context.Context, email string) (*model.Recipient, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockDirectory) ListActiveEmails(ctx context.Context) ([]string, error) {
	out := []string{}
	for _, u := range m.users {
		if u.IsActive {
			out = append(out, u.Email)
		}
	}
	return out, nil
}

func (m *MockDirectory) ListEmailsByRoles(ctx context.Context, roles []string) ([]string, error) {
	out := []string{}
	for _, r := range roles {
		out = append(out, m.roles[r]...)
	}
	return out, nil
}

func (m *MockDirectory) ListEmailsByMunicipalities(ctx context.Context, ids []int) ([]string, error) {
	out := []string{}
	for _, id := range ids {
		out = append(out, m.munis[id]...)
	}
	return out, nil
}

type MockSettingsRepo struct {
	values map[string]string
	err    error
}

func (m *MockSettingsRepo) LoadAll(ctx context.Context) (map[string]string, error) {
	return m.values, m.err
}

// --- Delivery log and transport ---

type MockLogRepo struct {
	mu      sync.Mutex
	entries []model.DeliveryLogEntry
}

func (m *MockLogRepo) Create(ctx context.Context, e *model.DeliveryLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = len(m.entries) + 1
	m.entries = append(m.entries, *e)
	return nil
}

func (m *MockLogRepo) CountByTrigger(ctx context.Context, triggeredBy string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{model.DeliverySent: 0, model.DeliveryFailed: 0, model.DeliverySkipped: 0}
	for _, e := range m.entries {
		if e.TriggeredBy == triggeredBy {
			out[e.Status]++
		}
	}
	return out, nil
}

func (m *MockLogRepo) all() []model.DeliveryLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.DeliveryLogEntry(nil), m.entries...)
}

type MockSender struct {
	mu       sync.Mutex
	sent     []transport.Message
	SendFunc func(ctx context.Context, msg transport.Message) (string, error)
}

func (m *MockSender) Send(ctx context.Context, msg transport.Message) (string, error) {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	return "msg-" + msg.To[0], nil
}

func (m *MockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
