/*
 * Copyright 2025 FleetPulse Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetpulse/fleetpulse/pkg/models"
)

// MemoryStore is a mutex-guarded in-memory Service implementation. It backs
// tests and the standalone deployment mode; semantics match the Postgres
// store, including conditional demotion and copy-on-return.
type MemoryStore struct {
	mu sync.RWMutex

	bots     map[string]*models.Bot
	botNames map[string]string

	nodes     map[string]*models.FleetNode
	nodeNames map[string]string

	history map[string][]models.StatusHistoryEntry

	profiles map[string]*models.Profile
	tokens   map[string]string

	grants map[string]map[string]*models.PermissionGrant

	files map[string][]models.BotFile

	notifications map[string]*models.Notification
}

// NewMemoryStore creates an empty in-memory entity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bots:          make(map[string]*models.Bot),
		botNames:      make(map[string]string),
		nodes:         make(map[string]*models.FleetNode),
		nodeNames:     make(map[string]string),
		history:       make(map[string][]models.StatusHistoryEntry),
		profiles:      make(map[string]*models.Profile),
		tokens:        make(map[string]string),
		grants:        make(map[string]map[string]*models.PermissionGrant),
		files:         make(map[string][]models.BotFile),
		notifications: make(map[string]*models.Notification),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateBot(_ context.Context, bot *models.Bot) error {
	if bot == nil {
		return ErrBotNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.botNames[bot.Name]; exists {
		return ErrBotNameExists
	}

	if bot.ID == "" {
		bot.ID = uuid.New().String()
	}

	stored := *bot
	m.bots[stored.ID] = &stored
	m.botNames[stored.Name] = stored.ID

	return nil
}

func (m *MemoryStore) GetBot(_ context.Context, id string) (*models.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bot, ok := m.bots[id]
	if !ok {
		return nil, ErrBotNotFound
	}

	out := *bot

	return &out, nil
}

func (m *MemoryStore) GetBotByName(_ context.Context, name string) (*models.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.botNames[name]
	if !ok {
		return nil, ErrBotNotFound
	}

	out := *m.bots[id]

	return &out, nil
}

func (m *MemoryStore) UpdateBotStatus(
	_ context.Context, id string, status models.EntityStatus, lastHeartbeat time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bot, ok := m.bots[id]
	if !ok {
		return ErrBotNotFound
	}

	bot.Status = status
	bot.LastHeartbeat = lastHeartbeat

	return nil
}

func (m *MemoryStore) ListBots(_ context.Context) ([]models.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Bot, 0, len(m.bots))
	for _, bot := range m.bots {
		out = append(out, *bot)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func (m *MemoryStore) ListStaleBots(_ context.Context, cutoff time.Time) ([]models.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Bot

	for _, bot := range m.bots {
		if bot.Status != models.StatusOffline && bot.LastHeartbeat.Before(cutoff) {
			out = append(out, *bot)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func (m *MemoryStore) MarkBotOffline(_ context.Context, id string, cutoff time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bot, ok := m.bots[id]
	if !ok {
		return false, ErrBotNotFound
	}

	if bot.Status == models.StatusOffline || !bot.LastHeartbeat.Before(cutoff) {
		return false, nil
	}

	bot.Status = models.StatusOffline

	return true, nil
}

func (m *MemoryStore) GetNode(_ context.Context, id string) (*models.FleetNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, ok := m.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}

	out := copyNode(node)

	return &out, nil
}

func (m *MemoryStore) GetNodeByName(_ context.Context, name string) (*models.FleetNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.nodeNames[name]
	if !ok {
		return nil, ErrNodeNotFound
	}

	out := copyNode(m.nodes[id])

	return &out, nil
}

func (m *MemoryStore) UpsertNode(_ context.Context, node *models.FleetNode) error {
	if node == nil {
		return ErrNodeNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, exists := m.nodeNames[node.Name]; exists {
		node.ID = id
	} else if node.ID == "" {
		node.ID = uuid.New().String()
	}

	stored := copyNode(node)
	m.nodes[stored.ID] = &stored
	m.nodeNames[stored.Name] = stored.ID

	return nil
}

func (m *MemoryStore) ListNodes(_ context.Context) ([]models.FleetNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.FleetNode, 0, len(m.nodes))
	for _, node := range m.nodes {
		out = append(out, copyNode(node))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func (m *MemoryStore) ListStaleNodes(_ context.Context, cutoff time.Time) ([]models.FleetNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.FleetNode

	for _, node := range m.nodes {
		if node.Status != models.StatusOffline && node.LastHeartbeat.Before(cutoff) {
			out = append(out, copyNode(node))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func (m *MemoryStore) MarkNodeOffline(_ context.Context, id string, cutoff time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.nodes[id]
	if !ok {
		return false, ErrNodeNotFound
	}

	if node.Status == models.StatusOffline || !node.LastHeartbeat.Before(cutoff) {
		return false, nil
	}

	node.Status = models.StatusOffline

	return true, nil
}

func (m *MemoryStore) AppendStatusHistory(_ context.Context, entry *models.StatusHistoryEntry) error {
	if entry == nil {
		return ErrHistoryNil
	}

	if entry.EntityID == "" {
		return ErrEntityIDMissing
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *entry
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}

	m.history[stored.EntityID] = append(m.history[stored.EntityID], stored)

	return nil
}

func (m *MemoryStore) GetStatusHistory(
	_ context.Context, entityID string, limit int) ([]models.StatusHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.history[entityID]

	// Newest first; ties preserve reverse insertion order.
	out := make([]models.StatusHistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (m *MemoryStore) CreateProfile(_ context.Context, profile *models.Profile) error {
	if profile == nil {
		return ErrProfileNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tokens[profile.AccessToken]; exists {
		return ErrTokenExists
	}

	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}

	stored := *profile
	m.profiles[stored.ID] = &stored
	m.tokens[stored.AccessToken] = stored.ID

	return nil
}

func (m *MemoryStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, ok := m.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}

	out := *profile

	return &out, nil
}

func (m *MemoryStore) GetProfileByToken(_ context.Context, token string) (*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.tokens[token]
	if !ok {
		return nil, ErrProfileNotFound
	}

	out := *m.profiles[id]

	return &out, nil
}

func (m *MemoryStore) UpsertPermissionGrant(_ context.Context, grant *models.PermissionGrant) error {
	if grant == nil {
		return ErrGrantNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	byBot, ok := m.grants[grant.ProfileID]
	if !ok {
		byBot = make(map[string]*models.PermissionGrant)
		m.grants[grant.ProfileID] = byBot
	}

	stored := *grant
	byBot[grant.BotID] = &stored

	return nil
}

func (m *MemoryStore) GetPermissionGrant(
	_ context.Context, profileID, botID string) (*models.PermissionGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	grant, ok := m.grants[profileID][botID]
	if !ok {
		return nil, nil
	}

	out := *grant

	return &out, nil
}

func (m *MemoryStore) ListGrantsForProfile(
	_ context.Context, profileID string) ([]models.PermissionGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byBot := m.grants[profileID]

	out := make([]models.PermissionGrant, 0, len(byBot))
	for _, grant := range byBot {
		out = append(out, *grant)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].BotID < out[j].BotID })

	return out, nil
}

func (m *MemoryStore) ListGrantsForBot(_ context.Context, botID string) ([]models.PermissionGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.PermissionGrant

	for _, byBot := range m.grants {
		if grant, ok := byBot[botID]; ok {
			out = append(out, *grant)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ProfileID < out[j].ProfileID })

	return out, nil
}

func (m *MemoryStore) ReplaceBotFiles(_ context.Context, botID string, files []*models.BotFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bots[botID]; !ok {
		return ErrBotNotFound
	}

	// Build the replacement set first so the swap below is all-or-nothing.
	replacement := make([]models.BotFile, 0, len(files))

	for _, file := range files {
		stored := *file
		stored.BotID = botID

		if stored.ID == "" {
			stored.ID = uuid.New().String()
		}

		replacement = append(replacement, stored)
	}

	m.files[botID] = replacement

	return nil
}

func (m *MemoryStore) ListBotFiles(_ context.Context, botID string) ([]models.BotFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.BotFile, len(m.files[botID]))
	copy(out, m.files[botID])

	return out, nil
}

func (m *MemoryStore) CreateNotification(_ context.Context, notification *models.Notification) error {
	if notification == nil {
		return ErrNotificationNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *notification
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}

	notification.ID = stored.ID
	m.notifications[stored.ID] = &stored

	return nil
}

func (m *MemoryStore) ListNotifications(
	_ context.Context, profileID string, limit int) ([]models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Notification

	for _, notification := range m.notifications {
		if notification.ProfileID == profileID {
			out = append(out, *notification)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (m *MemoryStore) MarkNotificationRead(_ context.Context, id, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	notification, ok := m.notifications[id]
	if !ok || notification.ProfileID != profileID {
		return ErrNotificationNotFound
	}

	notification.Read = true

	return nil
}

func copyNode(node *models.FleetNode) models.FleetNode {
	out := *node
	out.RunningBots = append([]string(nil), node.RunningBots...)

	return out
}
