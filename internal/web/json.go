package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sweeney/garage-controller/internal/logstore"
)

// Result codes returned by the command and options endpoints.
const (
	resultOK           = 1
	resultUnauthorized = 2
	resultMismatch     = 3
	resultMissing      = 16
	resultOutOfRange   = 17
	resultFormat       = 18
	resultNotPermitted = 48
	resultIO           = 64
)

// ResultJSON is the body of every command response.
type ResultJSON struct {
	Result int    `json:"result"`
	Item   string `json:"item"`
}

func writeResult(w http.ResponseWriter, code, result int, item string) {
	writeJSON(w, code, mustJSON(ResultJSON{Result: result, Item: item}))
}

// LogJSON is the event log document served at /jl. Each entry is
// [timestamp, status, distance] with the switch level appended when a
// switch is installed.
type LogJSON struct {
	Name      string    `json:"name"`
	StartTime int64     `json:"starttime"`
	Time      int64     `json:"time"`
	NCols     int       `json:"ncols"`
	Logs      [][]int64 `json:"logs"`
}

func formatLog(name string, start, now time.Time, switchInstalled bool, recs []logstore.Record) []byte {
	lj := LogJSON{
		Name:      name,
		StartTime: start.Unix(),
		Time:      now.Unix(),
		NCols:     3,
		Logs:      make([][]int64, 0, len(recs)),
	}
	if switchInstalled {
		lj.NCols = 4
	}
	for _, r := range recs {
		if r.Empty() {
			continue
		}
		row := []int64{r.Timestamp, int64(r.Status), int64(r.Distance)}
		if switchInstalled {
			row = append(row, int64(r.Switch))
		}
		lj.Logs = append(lj.Logs, row)
	}
	return mustJSON(lj)
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}
	return data
}
