package sse

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/lobbysync/internal/api/response"
	"github.com/mcoot/lobbysync/internal/dependencies/clock"
	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/services/lobby"
	"github.com/mcoot/lobbysync/internal/storage/memory"
	"github.com/mcoot/lobbysync/internal/testutil"
)

func decodeData(t *testing.T, frame string, v any) string {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(frame), "\n")
	require.Len(t, lines, 2)
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), v))
	return strings.TrimPrefix(lines[0], "event: ")
}

func TestBroadcasterPublishLobby(t *testing.T) {
	hub := newRunningHub(t)
	client := NewClient("alice", "ABCD")
	require.True(t, hub.Register(client))

	alice := model.Identity("alice")
	b := NewBroadcaster(hub, testutil.NopLogger())
	b.PublishLobby(&model.Lobby{
		Code:     "ABCD",
		Red:      &alice,
		RedCount: 3,
		Created:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Version:  1,
	})

	var got response.Lobby
	event := decodeData(t, receive(t, client), &got)
	assert.Equal(t, EventLobbyUpdate, event)
	assert.Equal(t, "ABCD", got.Code)
	require.NotNil(t, got.Red)
	assert.Equal(t, "alice", *got.Red)
	assert.Nil(t, got.Blue)
	assert.Equal(t, uint32(3), got.RedCount)
}

func TestBroadcasterPublishUser(t *testing.T) {
	hub := newRunningHub(t)
	client := NewClient("bob", "ABCD")
	require.True(t, hub.Register(client))

	b := NewBroadcaster(hub, testutil.NopLogger())
	b.PublishUser(&model.User{Identity: "alice", Online: true, Version: 1})

	var got response.User
	event := decodeData(t, receive(t, client), &got)
	assert.Equal(t, EventUserUpdate, event)
	assert.Equal(t, "alice", got.Identity)
	assert.True(t, got.Online)
	assert.Nil(t, got.Name)
}

func TestSnapshotFrames(t *testing.T) {
	frame, err := LobbyFrame(&model.Lobby{Code: "WXYZ"})
	require.NoError(t, err)
	var lobby response.Lobby
	assert.Equal(t, EventLobbyUpdate, decodeData(t, string(frame.data), &lobby))
	assert.Equal(t, "WXYZ", lobby.Code)

	frame, err = UserFrame(&model.User{Identity: "alice"})
	require.NoError(t, err)
	var user response.User
	assert.Equal(t, EventUserUpdate, decodeData(t, string(frame.data), &user))
	assert.False(t, user.Online)
}

func TestSnapshotFramesCarryRowVersions(t *testing.T) {
	frame, err := LobbyFrame(&model.Lobby{Code: "WXYZ", Version: 4})
	require.NoError(t, err)
	assert.Equal(t, "lobby:WXYZ", frame.row)
	assert.Equal(t, uint64(4), frame.version)

	frame, err = UserFrame(&model.User{Identity: "alice", Version: 2})
	require.NoError(t, err)
	assert.Equal(t, "user:alice", frame.row)
	assert.Equal(t, uint64(2), frame.version)
}

func TestBroadcasterDropsStaleLobbyRows(t *testing.T) {
	hub := newRunningHub(t)
	client := NewClient("alice", "ABCD")
	require.True(t, hub.Register(client))
	b := NewBroadcaster(hub, testutil.NopLogger())

	// the older row is published second
	b.PublishLobby(&model.Lobby{Code: "ABCD", RedCount: 2, Version: 3})
	b.PublishLobby(&model.Lobby{Code: "ABCD", RedCount: 1, Version: 2})
	b.PublishLobby(&model.Lobby{Code: "ABCD", RedCount: 3, Version: 4})

	var got response.Lobby
	decodeData(t, receive(t, client), &got)
	assert.Equal(t, uint32(2), got.RedCount)
	decodeData(t, receive(t, client), &got)
	assert.Equal(t, uint32(3), got.RedCount)
	assert.Equal(t, uint64(4), got.Version)
	assertNothingReceived(t, client)
}

func TestConcurrentIncrementsReachSubscribersInCommitOrder(t *testing.T) {
	hub := newRunningHub(t)
	client := NewClient("watcher", "GAME1")
	require.True(t, hub.Register(client))

	ctx := context.Background()
	logger := testutil.NopLogger()
	controller := lobby.NewController(memory.New(), clock.New(), logger)
	b := NewBroadcaster(hub, logger)

	created, err := controller.CreateLobby(ctx, "alice", "game1")
	require.NoError(t, err)
	b.PublishLobby(created)

	received := make(chan []uint32, 1)
	go func() {
		var counts []uint32
		for msg := range client.send {
			var row response.Lobby
			for _, line := range strings.Split(string(msg), "\n") {
				if data, ok := strings.CutPrefix(line, "data: "); ok && json.Unmarshal([]byte(data), &row) == nil {
					counts = append(counts, row.RedCount)
				}
			}
		}
		received <- counts
	}()

	const workers, perWorker = 8, 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				updated, err := controller.Increment(ctx, "alice", "GAME1")
				if !assert.NoError(t, err) {
					return
				}
				b.PublishLobby(updated)
			}
		}()
	}
	wg.Wait()

	// drain the hub before disconnecting the watcher
	time.Sleep(100 * time.Millisecond)
	hub.Unregister(client)

	var counts []uint32
	select {
	case counts = <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not finish")
	}
	require.NotEmpty(t, counts)
	for i := 1; i < len(counts); i++ {
		require.Greater(t, counts[i], counts[i-1], "row went backwards at update %d", i)
	}
}
