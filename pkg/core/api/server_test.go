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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetpulse/fleetpulse/pkg/core"
	"github.com/fleetpulse/fleetpulse/pkg/core/auth"
	"github.com/fleetpulse/fleetpulse/pkg/db"
	"github.com/fleetpulse/fleetpulse/pkg/hub"
	"github.com/fleetpulse/fleetpulse/pkg/logger"
	"github.com/fleetpulse/fleetpulse/pkg/models"
)

const testAPIKey = "service-key"

type testStack struct {
	api   *APIServer
	store *db.MemoryStore
	auth  *auth.Auth
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	store := db.NewMemoryStore()
	log := logger.NewTestLogger()
	broadcastHub := hub.NewHub(log)
	engine := core.NewServer(store, broadcastHub, nil, log)
	authService := auth.NewAuth(store, log)

	apiServer := NewAPIServer(models.CORSConfig{},
		WithEngine(engine),
		WithAuthService(authService),
		WithHub(broadcastHub),
		WithAPIKey(testAPIKey),
		WithLogger(log),
	)

	return &testStack{api: apiServer, store: store, auth: authService}
}

func (ts *testStack) do(t *testing.T, method, path string, body interface{}, decorate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	if decorate != nil {
		decorate(req)
	}

	recorder := httptest.NewRecorder()
	ts.api.Router().ServeHTTP(recorder, req)

	return recorder
}

func withAPIKey(req *http.Request) {
	req.Header.Set("X-API-Key", testAPIKey)
}

func withToken(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// seedProfileWithGrant creates a bot and a profile holding the given
// capabilities over it.
func (ts *testStack) seedProfileWithGrant(t *testing.T, botName string, caps models.Capabilities) (botID, token string) {
	t.Helper()

	ctx := context.Background()

	bot := &models.Bot{Name: botName, Status: models.StatusOnline, LastHeartbeat: time.Now()}
	require.NoError(t, ts.store.CreateBot(ctx, bot))

	resp, err := ts.auth.CreateProfile(ctx, auth.CreateProfileRequest{Name: botName + "-profile"})
	require.NoError(t, err)

	require.NoError(t, ts.auth.GrantPermissions(ctx, resp.ProfileID, bot.ID, caps))

	return bot.ID, resp.AccessToken
}

func TestBotPingRequiresAPIKey(t *testing.T) {
	t.Parallel()

	ts := newTestStack(t)

	recorder := ts.do(t, http.MethodPost, "/api/bot/ping", PingRequest{Name: "alpha"}, nil)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = ts.do(t, http.MethodPost, "/api/bot/ping", PingRequest{Name: "alpha"}, withAPIKey)
	require.Equal(t, http.StatusOK, recorder.Code)

	var result core.HeartbeatResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	require.NotEmpty(t, result.EntityID)
	require.Equal(t, models.StatusOnline, result.To)

	// The wire keys follow the same convention as every other payload.
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &raw))
	require.Contains(t, raw, "entity_id")
	require.Contains(t, raw, "transitioned")
}

func TestBotPingRejectsInvalidStatus(t *testing.T) {
	t.Parallel()

	ts := newTestStack(t)

	recorder := ts.do(t, http.MethodPost, "/api/bot/ping",
		PingRequest{Name: "alpha", Status: "hibernating"}, withAPIKey)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestNodeHeartbeatEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestStack(t)

	recorder := ts.do(t, http.MethodPost, "/api/raspberry/heartbeat",
		NodeHeartbeatRequest{Name: "pi-01", CPUUsage: 25.0}, withAPIKey)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = ts.do(t, http.MethodGet, "/api/nodes", nil, withAPIKey)
	require.Equal(t, http.StatusOK, recorder.Code)

	var nodes []models.FleetNode
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &nodes))
	require.Len(t, nodes, 1)
	require.Equal(t, "pi-01", nodes[0].Name)

	// A heartbeat without a source is tagged with the agent default.
	history, err := ts.store.GetStatusHistory(context.Background(), nodes[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "node-agent", history[0].Source)
}

func TestGetBotsFiltersByViewCapability(t *testing.T) {
	t.Parallel()

	ts := newTestStack(t)

	visibleID, token := ts.seedProfileWithGrant(t, "visible", models.Capabilities{CanView: true})

	hidden := &models.Bot{Name: "hidden", Status: models.StatusOnline, LastHeartbeat: time.Now()}
	require.NoError(t, ts.store.CreateBot(context.Background(), hidden))

	recorder := ts.do(t, http.MethodGet, "/api/bots", nil, withToken(token))
	require.Equal(t, http.StatusOK, recorder.Code)

	var bots []models.Bot
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &bots))
	require.Len(t, bots, 1)
	require.Equal(t, visibleID, bots[0].ID)
}

func TestGetBotsRejectsUnknownToken(t *testing.T) {
	t.Parallel()

	ts := newTestStack(t)

	recorder := ts.do(t, http.MethodGet, "/api/bots", nil, withToken("bogus"))
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestGetBotRequiresViewCapability(t *testing.T) {
	t.Parallel()

	ts := newTestStack(t)

	botID, viewToken := ts.seedProfileWithGrant(t, "detailed", models.Capabilities{CanView: true})
	_, blindToken := ts.seedProfileWithGrant(t, "unrelated", models.Capabilities{CanView: true})

	recorder := ts.do(t, http.MethodGet, "/api/bot/"+botID, nil, withToken(viewToken))
	require.Equal(t, http.StatusOK, recorder.Code)

	var detail BotDetail
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &detail))
	require.Equal(t, botID, detail.Bot.ID)

	recorder = ts.do(t, http.MethodGet, "/api/bot/"+botID, nil, withToken(blindToken))
	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestGetBotDetailIncludesFiles(t *testing.T) {
	t.Parallel()

	ts := newTestStack(t)

	botID, token := ts.seedProfileWithGrant(t, "shipped", models.Capabilities{CanView: true})

	require.NoError(t, ts.store.ReplaceBotFiles(context.Background(), botID, []*models.BotFile{
		{BotID: botID, Name: "shipped.js", Content: "main", Hash: "abc"},
	}))

	recorder := ts.do(t, http.MethodGet, "/api/bot/"+botID, nil, withToken(token))
	require.Equal(t, http.StatusOK, recorder.Code)

	var detail BotDetail
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &detail))
	require.Len(t, detail.Files, 1)
	require.Equal(t, "shipped.js", detail.Files[0].Name)
}

func TestControlBotCapabilitySplit(t *testing.T) {
	t.Parallel()

	ts := newTestStack(t)

	botID, token := ts.seedProfileWithGrant(t, "operated", models.Capabilities{
		CanStartStop: true,
	})

	recorder := ts.do(t, http.MethodPost, "/api/bot/"+botID+"/control",
		ControlRequest{Action: "stop"}, withToken(token))
	require.Equal(t, http.StatusAccepted, recorder.Code)

	// Restart rides its own capability bit.
	recorder = ts.do(t, http.MethodPost, "/api/bot/"+botID+"/control",
		ControlRequest{Action: "restart"}, withToken(token))
	require.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = ts.do(t, http.MethodPost, "/api/bot/"+botID+"/control",
		ControlRequest{Action: "reboot"}, withToken(token))
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestBotFilesRoundTrip(t *testing.T) {
	t.Parallel()

	ts := newTestStack(t)

	botID, token := ts.seedProfileWithGrant(t, "filed", models.Capabilities{
		CanView: true,
		CanEdit: true,
	})

	recorder := ts.do(t, http.MethodPost, "/api/bot/"+botID+"/files", FilesRequest{
		Files: []core.FileInput{{Name: "filed.js", Content: "main"}},
	}, withToken(token))
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = ts.do(t, http.MethodGet, "/api/bot/"+botID+"/files", nil, withToken(token))
	require.Equal(t, http.StatusOK, recorder.Code)

	var files []models.BotFile
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &files))
	require.Len(t, files, 1)
	require.Equal(t, "filed.js", files[0].Name)
	require.NotEmpty(t, files[0].Hash)
}

func TestBotFilesWriteNeedsEditCapability(t *testing.T) {
	t.Parallel()

	ts := newTestStack(t)

	botID, token := ts.seedProfileWithGrant(t, "readonly", models.Capabilities{CanView: true})

	recorder := ts.do(t, http.MethodPost, "/api/bot/"+botID+"/files", FilesRequest{
		Files: []core.FileInput{{Name: "x.js", Content: "x"}},
	}, withToken(token))
	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestCreateProfileAndVerifyKey(t *testing.T) {
	t.Parallel()

	ts := newTestStack(t)

	recorder := ts.do(t, http.MethodPost, "/api/profiles", CreateProfileRequest{
		Name:                 "desktop",
		NotificationsEnabled: true,
	}, withAPIKey)
	require.Equal(t, http.StatusCreated, recorder.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &created))
	require.NotEmpty(t, created["profile_id"])
	require.NotEmpty(t, created["access_token"])

	recorder = ts.do(t, http.MethodPost, "/api/auth/verify-key",
		VerifyKeyRequest{Token: created["access_token"]}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var verified VerifyKeyResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &verified))
	require.True(t, verified.Valid)
	require.Equal(t, "desktop", verified.Profile.Name)

	recorder = ts.do(t, http.MethodPost, "/api/auth/verify-key",
		VerifyKeyRequest{Token: "bogus"}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var rejected VerifyKeyResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &rejected))
	require.False(t, rejected.Valid)
	require.Nil(t, rejected.Profile)
}

func TestCreateProfileAppliesInitialGrants(t *testing.T) {
	t.Parallel()

	ts := newTestStack(t)

	bot := &models.Bot{Name: "granted", Status: models.StatusOnline, LastHeartbeat: time.Now()}
	require.NoError(t, ts.store.CreateBot(context.Background(), bot))

	recorder := ts.do(t, http.MethodPost, "/api/profiles", CreateProfileRequest{
		Name: "onboarded",
		Grants: []GrantRequest{
			{BotID: bot.ID, Capabilities: models.Capabilities{CanView: true}},
			// Unknown bot: the grant is skipped, the profile survives.
			{BotID: "no-such-bot", Capabilities: models.Capabilities{CanView: true}},
		},
	}, withAPIKey)
	require.Equal(t, http.StatusCreated, recorder.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &created))

	recorder = ts.do(t, http.MethodPost, "/api/auth/verify-key",
		VerifyKeyRequest{Token: created["access_token"]}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var verified VerifyKeyResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &verified))
	require.True(t, verified.Valid)
	require.Len(t, verified.Grants, 1)
	require.Equal(t, bot.ID, verified.Grants[0].BotID)
	require.True(t, verified.Grants[0].CanView)

	// The response also carries the joined bot summaries so clients can
	// build their views from this one call.
	require.Len(t, verified.Bots, 1)
	require.Equal(t, bot.ID, verified.Bots[0].BotID)
	require.Equal(t, "granted", verified.Bots[0].Name)
	require.Equal(t, models.StatusOnline, verified.Bots[0].Status)
	require.True(t, verified.Bots[0].CanView)
	require.False(t, verified.Bots[0].CanEdit)
}

func TestNotificationsFlow(t *testing.T) {
	t.Parallel()

	ts := newTestStack(t)
	ctx := context.Background()

	botID, token := ts.seedProfileWithGrant(t, "noisy", models.Capabilities{
		CanView:              true,
		ReceiveNotifications: true,
	})

	resolution, err := ts.auth.ResolveToken(ctx, token)
	require.NoError(t, err)

	notif := &models.Notification{
		ProfileID: resolution.Profile.ID,
		BotID:     botID,
		Type:      models.NotificationBotCrash,
		Message:   "Bot noisy has crashed",
		CreatedAt: time.Now(),
	}
	require.NoError(t, ts.store.CreateNotification(ctx, notif))

	recorder := ts.do(t, http.MethodGet, "/api/notifications", nil, withToken(token))
	require.Equal(t, http.StatusOK, recorder.Code)

	var notifications []models.Notification
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &notifications))
	require.Len(t, notifications, 1)
	require.False(t, notifications[0].Read)

	recorder = ts.do(t, http.MethodPost, "/api/notifications/"+notif.ID+"/read", nil, withToken(token))
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = ts.do(t, http.MethodGet, "/api/notifications", nil, withToken(token))
	require.Equal(t, http.StatusOK, recorder.Code)

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &notifications))
	require.Len(t, notifications, 1)
	require.True(t, notifications[0].Read)
}

func TestNotificationReadScopedToOwner(t *testing.T) {
	t.Parallel()

	ts := newTestStack(t)
	ctx := context.Background()

	botID, ownerToken := ts.seedProfileWithGrant(t, "owned", models.Capabilities{ReceiveNotifications: true})
	_, intruderToken := ts.seedProfileWithGrant(t, "intruding", models.Capabilities{CanView: true})

	resolution, err := ts.auth.ResolveToken(ctx, ownerToken)
	require.NoError(t, err)

	notif := &models.Notification{
		ProfileID: resolution.Profile.ID,
		BotID:     botID,
		Type:      models.NotificationInfo,
		CreatedAt: time.Now(),
	}
	require.NoError(t, ts.store.CreateNotification(ctx, notif))

	recorder := ts.do(t, http.MethodPost, "/api/notifications/"+notif.ID+"/read", nil, withToken(intruderToken))
	require.Equal(t, http.StatusNotFound, recorder.Code)
}
