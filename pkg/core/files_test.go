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

package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetpulse/fleetpulse/pkg/db"
	"github.com/fleetpulse/fleetpulse/pkg/models"
)

func TestReplaceBotFilesContentAddressing(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	ctx := context.Background()

	bot := seedBot(t, store, "filer", models.StatusOnline, time.Now())

	files, err := server.ReplaceBotFiles(ctx, bot.ID, []FileInput{
		{Name: "filer.js", Path: "/", Content: "console.log('hi')"},
		{Name: "config.json", Path: "/", Content: "{}"},
	})
	require.NoError(t, err)
	require.Len(t, files, 2)

	sum := sha256.Sum256([]byte("console.log('hi')"))
	require.Equal(t, hex.EncodeToString(sum[:]), files[0].Hash)

	stored, err := server.ListBotFiles(ctx, bot.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
}

func TestReplaceBotFilesSwapsWholeSet(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	ctx := context.Background()

	bot := seedBot(t, store, "swapper", models.StatusOnline, time.Now())

	_, err := server.ReplaceBotFiles(ctx, bot.ID, []FileInput{
		{Name: "old.js", Content: "old"},
		{Name: "keep.js", Content: "keep"},
	})
	require.NoError(t, err)

	_, err = server.ReplaceBotFiles(ctx, bot.ID, []FileInput{
		{Name: "new.js", Content: "new"},
	})
	require.NoError(t, err)

	stored, err := server.ListBotFiles(ctx, bot.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1, "replacement is wholesale, not a merge")
	require.Equal(t, "new.js", stored[0].Name)
}

func TestReplaceBotFilesConcurrentReplacementsNeverMix(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	ctx := context.Background()

	bot := seedBot(t, store, "contended", models.StatusOnline, time.Now())

	setA := []FileInput{
		{Name: "main.js", Content: "A"},
		{Name: "util.js", Content: "A"},
	}
	setB := []FileInput{
		{Name: "main.js", Content: "B"},
		{Name: "util.js", Content: "B"},
		{Name: "extra.js", Content: "B"},
	}

	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()

			_, err := server.ReplaceBotFiles(ctx, bot.ID, setA)
			require.NoError(t, err)
		}()

		go func() {
			defer wg.Done()

			_, err := server.ReplaceBotFiles(ctx, bot.ID, setB)
			require.NoError(t, err)
		}()
	}

	wg.Wait()

	stored, err := server.ListBotFiles(ctx, bot.ID)
	require.NoError(t, err)

	// Whichever write landed last, the set must be homogeneous.
	switch len(stored) {
	case len(setA):
		for _, f := range stored {
			require.Equal(t, "A", f.Content)
		}
	case len(setB):
		for _, f := range stored {
			require.Equal(t, "B", f.Content)
		}
	default:
		t.Fatalf("mixed file set: %d files", len(stored))
	}
}

func TestReplaceBotFilesEmptySet(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	bot := seedBot(t, store, "empty", models.StatusOnline, time.Now())

	_, err := server.ReplaceBotFiles(context.Background(), bot.ID, nil)
	require.ErrorIs(t, err, ErrEmptyFileSet)
}

func TestReplaceBotFilesUnknownBot(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	_, err := server.ReplaceBotFiles(context.Background(), "missing", []FileInput{
		{Name: "a.js", Content: "a"},
	})
	require.ErrorIs(t, err, db.ErrBotNotFound)
}
