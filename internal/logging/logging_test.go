package logging

import (
	"testing"

	"github.com/prometheus/common/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/timzifer/threadgen/config"
)

func TestSetupDefaults(t *testing.T) {
	logger, cleanup, err := Setup(config.LoggingConfig{})
	require.NoError(t, err)
	defer cleanup()
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestSetupLevelAndFormat(t *testing.T) {
	logger, cleanup, err := Setup(config.LoggingConfig{Level: "DEBUG", Format: "text", Output: "stdout"})
	require.NoError(t, err)
	defer cleanup()
	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}

func TestSetupRejectsInvalidValues(t *testing.T) {
	for _, cfg := range []config.LoggingConfig{
		{Level: "loud"},
		{Format: "xml"},
		{Output: "syslog"},
		{Loki: config.LokiConfig{Enabled: true}},
	} {
		_, _, err := Setup(cfg)
		require.Error(t, err, "%+v", cfg)
	}
}

func TestLokiLabels(t *testing.T) {
	require.Equal(t, model.LabelSet{"app": "threadgen"}, lokiLabels(nil))
	require.Equal(t, model.LabelSet{"device": "livingroom"}, lokiLabels(map[string]string{"device": "livingroom"}))
}
