package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerRefParsing(t *testing.T) {
	cases := []struct {
		raw  string
		want PlayerID
		ok   bool
	}{
		{`"1"`, 1, true},
		{`" 3 "`, 0, false},
		{`"01"`, 0, false},
		{`"+1"`, 0, false},
		{`1e19`, 0, false},
		{`4`, 4, true},
		{`2.0`, 2, true},
		{`2.5`, 0, false},
		{`"abc"`, 0, false},
		{`true`, 0, false},
		{`null`, 0, false},
	}
	for _, tc := range cases {
		var msg refMessage
		require.NoError(t, json.Unmarshal([]byte(`{"id":`+tc.raw+`}`), &msg))
		id, ok := msg.ID.PlayerID()
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.want, id, tc.raw)
	}
}

func TestPlayerRefEchoesVerbatim(t *testing.T) {
	var msg refMessage
	require.NoError(t, json.Unmarshal([]byte(`{"id":"07"}`), &msg))
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"07"}`, string(b))

	b, err = json.Marshal(refMessage{ID: RefFor(3)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"3"}`, string(b))

	b, err = json.Marshal(refMessage{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":null}`, string(b))
}

func TestPlayerIDValid(t *testing.T) {
	assert.False(t, PlayerID(0).Valid())
	assert.True(t, PlayerID(1).Valid())
	assert.True(t, PlayerID(Capacity).Valid())
	assert.False(t, PlayerID(Capacity+1).Valid())
	assert.Equal(t, "4", PlayerID(4).String())
}
