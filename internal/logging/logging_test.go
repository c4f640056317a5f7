package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-shop-client/internal/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	env   string
	level string
}

func (c testConfig) GetEnv() string      { return c.env }
func (c testConfig) GetLogLevel() string { return c.level }

func TestNew_JSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(testConfig{env: "PROD", level: "debug"}, &buf)

	logger.Debug().Str("component", "session").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "hello", entry["message"])
	require.Equal(t, "session", entry["component"])
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(testConfig{env: "PROD", level: "chatty"}, &buf)

	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	logger.Debug().Msg("dropped")
	require.Empty(t, buf.String())
}
