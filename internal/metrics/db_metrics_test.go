package metrics

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offlineConnector даёт *sql.DB без реальной базы: Stats() не открывает соединений.
type offlineConnector struct{}

func (offlineConnector) Connect(context.Context) (driver.Conn, error) {
	return nil, errors.New("offline")
}

func (offlineConnector) Driver() driver.Driver { return offlineDriver{} }

type offlineDriver struct{}

func (offlineDriver) Open(string) (driver.Conn, error) { return nil, errors.New("offline") }

func TestRegisterDBStats(t *testing.T) {
	registry := prometheus.NewRegistry()
	db := sql.OpenDB(offlineConnector{})
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(7)

	assert.True(t, RegisterDBStats(registry, db, "ims"))
	assert.False(t, RegisterDBStats(registry, db, "ims"), "second registration is a no-op")
	assert.False(t, RegisterDBStats(registry, nil, "ims"))

	families, err := registry.Gather()
	require.NoError(t, err)

	var maxOpen float64
	found := false
	for _, family := range families {
		if family.GetName() != "go_sql_max_open_connections" {
			continue
		}
		found = true
		metric := family.GetMetric()[0]
		assert.Equal(t, "db_name", metric.GetLabel()[0].GetName())
		assert.Equal(t, "ims", metric.GetLabel()[0].GetValue())
		maxOpen = metric.GetGauge().GetValue()
	}
	require.True(t, found)
	assert.Equal(t, float64(7), maxOpen)
}
