package infra

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/config"
	"lifeline/migrations"
)

func TestSplitSQL(t *testing.T) {
	in := `-- header comment
CREATE TABLE a (id TEXT);

  -- indented comment
CREATE INDEX i ON a (id);
;
`
	got := SplitSQL(in)
	require.Len(t, got, 2)
	assert.Equal(t, "CREATE TABLE a (id TEXT)", got[0])
	assert.Equal(t, "CREATE INDEX i ON a (id)", got[1])
}

func TestEmbeddedMigrationSplits(t *testing.T) {
	content, err := migrations.FS.ReadFile("0001_init.sql")
	require.NoError(t, err)

	stmts := SplitSQL(string(content))
	require.NotEmpty(t, stmts)
	joined := strings.Join(stmts, "\n")
	for _, table := range []string{"facilities", "beds", "bed_reservations"} {
		assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, joined, "uq_bed_reservations_active_bed")
	for _, s := range stmts {
		assert.NotContains(t, s, "--")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, config.LogConfig{Level: "warn"})
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)

	buf.Reset()
	log = newLogger(&buf, config.LogConfig{Level: "bogus"})
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNewLoggerPretty(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, config.LogConfig{Level: "info", Pretty: true})
	log.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	_, err = NewRedis(context.Background(), "127.0.0.1:1")
	assert.Error(t, err)
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter(config.KafkaConfig{Brokers: []string{"k1:9092", "k2:9092"}, Topic: "lifeline.events"}, zerolog.Nop())
	defer w.Close()

	assert.Equal(t, "lifeline.events", w.Topic)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
	assert.NotNil(t, w.Addr)
}
