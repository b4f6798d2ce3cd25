package telegram

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcast_FailureDoesNotStopDelivery(t *testing.T) {
	api := newFakeAPI()
	api.failSendTo[3] = true
	b := newTestBot(t, api, newFakeStore(), nil)

	result := b.broadcast(context.Background(), []int64{1, 2, 3, 4, 5}, "exam tomorrow")

	assert.Equal(t, BroadcastResult{Success: 4, Failed: 1}, result)
	for _, id := range []int64{1, 2, 3, 4, 5} {
		assert.Len(t, api.messagesTo(id), 1, "recipient %d must be attempted", id)
	}
}

func TestBroadcastCommand_ReportsCounts(t *testing.T) {
	api := newFakeAPI()
	store := newFakeStore()
	for _, id := range []int64{11, 12, 13} {
		store.addUser(id)
	}
	store.banned[12] = true
	api.failSendTo[13] = true
	b := newTestBot(t, api, store, nil)

	require.NoError(t, b.HandleUpdate(context.Background(), messageUpdate(privateMessage(testAdminID, "/broadcast الامتحان غداً"))))

	assert.Equal(t, []string{fmt.Sprintf(BroadcastHeaderTemplate, "الامتحان غداً")}, api.textsTo(11))
	assert.Empty(t, api.messagesTo(12), "banned users are skipped")
	assert.Equal(t, []string{fmt.Sprintf(BroadcastReportTemplate, 1, 1)}, api.textsTo(testAdminID))
}

func TestBroadcastCommand_MissingText(t *testing.T) {
	api := newFakeAPI()
	b := newTestBot(t, api, newFakeStore(), nil)

	require.NoError(t, b.HandleUpdate(context.Background(), messageUpdate(privateMessage(testAdminID, "/broadcast"))))
	assert.Equal(t, []string{BroadcastUsage}, api.textsTo(testAdminID))
}

func TestAdminCommands_RejectNonAdmin(t *testing.T) {
	commands := []string{"/broadcast hi", "/ban 5", "/unban 5", "/stats"}

	for _, command := range commands {
		t.Run(command, func(t *testing.T) {
			api := newFakeAPI()
			store := newFakeStore()
			store.addUser(5)
			b := newTestBot(t, api, store, nil)

			require.NoError(t, b.HandleUpdate(context.Background(), messageUpdate(privateMessage(testUserID, command))))

			assert.Equal(t, []string{AdminOnlyMessage}, api.textsTo(testUserID))
			assert.Empty(t, api.messagesTo(5))
			assert.Zero(t, store.setBannedCalls)
		})
	}
}

func TestAdminCommands_SkipAccessGate(t *testing.T) {
	api := newFakeAPI()
	api.memberStatus[testAdminID] = "left"
	b := newTestBot(t, api, newFakeStore(), nil)

	require.NoError(t, b.HandleUpdate(context.Background(), messageUpdate(privateMessage(testAdminID, "/stats"))))

	assert.Zero(t, api.queriedMembership())
	assert.Len(t, api.textsTo(testAdminID), 1)
}

func TestBanCommand(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		reply      string
		mutations  int
		wantBanned bool
	}{
		{name: "ban", text: "/ban 777", reply: fmt.Sprintf(UserBannedTemplate, 777), mutations: 1, wantBanned: true},
		{name: "unban", text: "/unban 777", reply: fmt.Sprintf(UserUnbannedTemplate, 777), mutations: 1, wantBanned: false},
		{name: "invalid id", text: "/ban abc", reply: InvalidUserIDMessage},
		{name: "invalid unban id", text: "/unban 12x", reply: InvalidUserIDMessage},
		{name: "missing ban id", text: "/ban", reply: BanUsage},
		{name: "missing unban id", text: "/unban", reply: UnbanUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			store := newFakeStore()
			b := newTestBot(t, api, store, nil)

			require.NoError(t, b.HandleUpdate(context.Background(), messageUpdate(privateMessage(testAdminID, tt.text))))

			assert.Equal(t, []string{tt.reply}, api.textsTo(testAdminID))
			assert.Equal(t, tt.mutations, store.setBannedCalls)
			if tt.mutations > 0 {
				assert.Equal(t, tt.wantBanned, store.banned[777])
			}
		})
	}
}

func TestBanCommand_StoreError(t *testing.T) {
	store := newFakeStore()
	store.err = errStoreDown
	b := newTestBot(t, newFakeAPI(), store, nil)

	err := b.HandleUpdate(context.Background(), messageUpdate(privateMessage(testAdminID, "/ban 1")))
	assert.ErrorIs(t, err, errStoreDown)
}

func TestStatsCommand(t *testing.T) {
	api := newFakeAPI()
	store := newFakeStore()
	store.addUser(1)
	store.addUser(2)
	store.addUser(3)
	store.banned[2] = true
	b := newTestBot(t, api, store, nil)

	require.NoError(t, b.HandleUpdate(context.Background(), messageUpdate(privateMessage(testAdminID, "/stats"))))

	assert.Equal(t, []string{fmt.Sprintf(StatsTemplate, 3, "2024/09/01")}, api.textsTo(testAdminID))
}

func TestAdminCommands_DisabledWithoutAdminID(t *testing.T) {
	api := newFakeAPI()
	b := newTestBot(t, api, newFakeStore(), nil)
	b.config.AdminID = 0

	zero := privateMessage(0, "/stats")
	require.NoError(t, b.HandleUpdate(context.Background(), messageUpdate(zero)))
	assert.Equal(t, []string{AdminOnlyMessage}, api.textsTo(0))
}
