package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Заполняются через -ldflags "-X github.com/vladislavdragonenkov/ims/internal/version.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build описывает собранный бинарник.
type Build struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

func (b Build) String() string {
	return fmt.Sprintf("ims version=%s commit=%s date=%s", b.Version, b.Commit, b.Date)
}

var vcs = sync.OnceValues(func() (string, string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	var revision, at string
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			at = s.Value
		}
	}
	return revision, at
})

// Current возвращает данные сборки. Без -ldflags commit и date берутся
// из VCS-меток, которые go build вшивает сам.
func Current() Build {
	b := Build{Version: version, Commit: commit, Date: date}
	revision, at := vcs()
	if b.Commit == "unknown" && revision != "" {
		b.Commit = revision
	}
	if b.Date == "unknown" && at != "" {
		b.Date = at
	}
	return b
}

func GetVersion() string { return version }

// String форматирует сборку для логов.
func String() string { return Current().String() }
