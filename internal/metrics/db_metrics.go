package metrics

import (
	"database/sql"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// RegisterDBStats публикует состояние пула database/sql (go_sql_* с меткой db_name).
// Повторная регистрация того же имени ничего не делает и возвращает false.
func RegisterDBStats(registerer prometheus.Registerer, db *sql.DB, name string) bool {
	if db == nil {
		return false
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	err := registerer.Register(collectors.NewDBStatsCollector(db, name))
	if err == nil {
		return true
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return false
	}
	panic("register db stats collector: " + err.Error())
}
