package replay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScript(t *testing.T) {
	in := `time,action,arg1,arg2
# open then close
2024-03-04T09:00:00Z,buy,1
2024-03-04T09:00:01Z,PAUSE
2024-03-04T09:00:01Z,SEEK,2024-03-04T08:59:00Z
2024-03-04T09:00:01Z,resume
2024-03-04T09:00:05Z,SPEED,4
2024-03-04T09:00:06Z,SELL,1
2024-03-04T09:00:07Z,ADJUST,-2.5,fee refund
2024-03-04T09:00:08Z,STOP
`
	events, err := ParseScript(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, events, 8)

	assert.Equal(t, ActionBuy, events[0].Action)
	assert.Equal(t, "1", events[0].Amount.String())
	assert.Equal(t, time.Date(2024, 3, 4, 8, 59, 0, 0, time.UTC), events[2].To)
	assert.Equal(t, 4.0, events[4].Speed)
	assert.Equal(t, "-2.5", events[6].Amount.String())
	assert.Equal(t, "fee refund", events[6].Note)
	assert.Equal(t, ActionStop, events[7].Action)
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		errMsg string
	}{
		{"unknown action", "2024-03-04T09:00:00Z,HOLD\n", "unknown action"},
		{"missing qty", "2024-03-04T09:00:00Z,BUY\n", "need arg1=amount"},
		{"zero qty", "2024-03-04T09:00:00Z,SELL,0\n", "must be positive"},
		{"bad time", "noon,BUY,1\n", "bad time"},
		{"negative speed", "2024-03-04T09:00:00Z,SPEED,-1\n", "bad multiplier"},
		{"NaN speed", "2024-03-04T09:00:00Z,SPEED,NaN\n", "bad multiplier"},
		{"infinite speed", "2024-03-04T09:00:00Z,SPEED,+Inf\n", "bad multiplier"},
		{"out of order", "2024-03-04T09:00:01Z,PAUSE\n2024-03-04T09:00:00Z,RESUME\n", "before previous event"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript(strings.NewReader(tt.in))
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.csv")
	require.NoError(t, os.WriteFile(path, []byte("2024-03-04T09:00:00Z,DEPOSIT,500\n"), 0o644))

	events, err := LoadScript(path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ActionDeposit, events[0].Action)

	_, err = LoadScript(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
