package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryCommandHasARoutingKey(t *testing.T) {
	names := []string{
		CommandWithdrawal, CommandCheckBalance, CommandReserveBalance,
		CommandProcessTransaction, CommandConfirmTransaction,
		CommandUpdateStatement, CommandNotifyUser, CommandReleaseBalance,
	}
	require.Len(t, RoutingKeys, len(names))
	for _, name := range names {
		key, ok := RoutingKeys[name]
		assert.True(t, ok, name)
		assert.Contains(t, key, "commands.")
	}
}

func TestEnvelopeCarriesCommandNameAndPayload(t *testing.T) {
	body, err := NewEnvelope(CommandReserveBalance, ReserveBalanceCommand{
		TransactionID: "tx-1",
		AccountID:     "acc-src",
		Amount:        5000,
	})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, CommandReserveBalance, env.CommandName)

	var cmd ReserveBalanceCommand
	require.NoError(t, json.Unmarshal(env.Payload, &cmd))
	assert.Equal(t, int64(5000), cmd.Amount)
}

func TestParseEntryType(t *testing.T) {
	got, ok := ParseEntryType(" debit ")
	assert.True(t, ok)
	assert.Equal(t, EntryDebit, got)

	_, ok = ParseEntryType("refund")
	assert.False(t, ok)
}

func TestNotificationKindValid(t *testing.T) {
	assert.True(t, NotifyWithdrawalFailed.Valid())
	assert.False(t, NotificationKind("REFUND").Valid())
}
