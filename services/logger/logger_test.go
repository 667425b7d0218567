package logsvc

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomodb/core"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New(&core.Config{AppName: "Masomo", Env: "TEST", LogLevel: "info"}, &buf)

	log.Debug("hidden")
	log.With("step", "verifyTables").Warn("probe failed", "table", "fees", "attempt", 2, errors.New("timeout"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &got))
	assert.Equal(t, "probe failed", got["msg"])
	assert.Equal(t, "warning", got["level"])
	assert.Equal(t, "verifyTables", got["step"])
	assert.Equal(t, "fees", got["table"])
	assert.Equal(t, float64(2), got["attempt"])
	assert.Equal(t, "timeout", got["error"])
	assert.Equal(t, "Masomo", got["app"])
}

func TestToFields(t *testing.T) {
	tests := []struct {
		name string
		args []interface{}
		want map[string]interface{}
	}{
		{"pairs", []interface{}{"a", 1, "b", "x"}, map[string]interface{}{"a": 1, "b": "x"}},
		{"dangling key", []interface{}{"a"}, map[string]interface{}{"arg0": "a"}},
		{"non-string key", []interface{}{42, "a", 1}, map[string]interface{}{"arg0": 42, "a": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toFields(tt.args)
			assert.Equal(t, len(tt.want), len(got))
			for k, v := range tt.want {
				assert.Equal(t, v, got[k], k)
			}
		})
	}
}
