package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sweeney/garage-controller/internal/automation"
	"github.com/sweeney/garage-controller/internal/logic"
	"github.com/sweeney/garage-controller/internal/logstore"
	"github.com/sweeney/garage-controller/internal/options"
	"github.com/sweeney/garage-controller/internal/status"
)

type fakeController struct {
	opts      options.Options
	commands  []string
	updates   []map[string]string
	records   []logstore.Record
	cleared   bool
	reset     bool
	cmdErr    error
	updateErr error
}

func (f *fakeController) HandleCommand(name, source string) error {
	if f.cmdErr != nil {
		return f.cmdErr
	}
	f.commands = append(f.commands, name)
	return nil
}

func (f *fakeController) Options() options.Options { return f.opts }

func (f *fakeController) UpdateOptions(values map[string]string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, values)
	return nil
}

func (f *fakeController) FactoryReset() error {
	f.reset = true
	return nil
}

func (f *fakeController) ReadLog() ([]logstore.Record, error) { return f.records, nil }

func (f *fakeController) ClearLog() error {
	f.cleared = true
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *fakeController) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Firmware:      options.Version,
		ReadIntervalS: 1,
		Broker:        "tcp://192.168.1.200:1883",
		HTTPAddr:      ":80",
	}
	tr := status.NewTracker(start, "Garage", cfg)
	fc := &fakeController{opts: options.Defaults()}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "garage_door_status 0\n")
	})
	srv := New(":0", tr, fc, metrics)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr, fc
}

func getResult(t *testing.T, url string) (int, ResultJSON) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var res ResultJSON
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return resp.StatusCode, res
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(status.Door{Status: logic.StatusOpen, Event: logic.EventJustOpened, Distance: 28}, true, time.Now())
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Status.Door != "OPEN" || sj.Status.DistanceCM != 28 {
		t.Errorf("door: %+v", sj.Status)
	}
	if !sj.Status.Ready || !sj.Status.MQTT.Connected {
		t.Error("expected Ready and MQTT connected")
	}
	if sj.Status.Counts.Opened != 1 {
		t.Errorf("Counts.Opened: got %d", sj.Status.Counts.Opened)
	}
}

func TestJSONUnknownStateBeforeBaseline(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	json.NewDecoder(resp.Body).Decode(&sj)
	if sj.Status.Door != "UNKNOWN" || sj.Status.Ready {
		t.Errorf("before baseline: %+v", sj.Status)
	}
}

func TestControllerEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(status.Door{Status: logic.StatusClosed, Vehicle: logic.VehiclePresent, Distance: 120}, true, time.Now())

	resp, err := http.Get(ts.URL + "/jc")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var jc status.ControllerJSON
	if err := json.NewDecoder(resp.Body).Decode(&jc); err != nil {
		t.Fatal(err)
	}
	want := status.ControllerJSON{Dist: 120, Door: 0, Vehicle: 1, ReadCount: 1, Firmware: options.Version, Name: "Garage"}
	if diff := cmp.Diff(want, jc); diff != "" {
		t.Errorf("/jc (-want +got):\n%s", diff)
	}
}

func TestLogEndpoint(t *testing.T) {
	ts, tr, fc := newTestServer(t)
	fc.records = []logstore.Record{
		{Timestamp: 1700000000, Status: 1, Distance: 30, Switch: logstore.SwitchNotApplicable},
		{},
		{Timestamp: 1700000100, Status: 0, Distance: 210, Switch: logstore.SwitchNotApplicable},
	}

	resp, err := http.Get(ts.URL + "/jl")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var lj LogJSON
	if err := json.NewDecoder(resp.Body).Decode(&lj); err != nil {
		t.Fatal(err)
	}
	if lj.Name != "My Garage" || lj.NCols != 3 {
		t.Errorf("header: %+v", lj)
	}
	want := [][]int64{{1700000000, 1, 30}, {1700000100, 0, 210}}
	if diff := cmp.Diff(want, lj.Logs); diff != "" {
		t.Errorf("logs (-want +got):\n%s", diff)
	}

	tr.SetConfig("Garage", status.Config{SwitchInstalled: true})
	resp2, err := http.Get(ts.URL + "/jl")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	json.NewDecoder(resp2.Body).Decode(&lj)
	if lj.NCols != 4 || len(lj.Logs[0]) != 4 || lj.Logs[0][3] != 255 {
		t.Errorf("switch column: %+v", lj)
	}
}

func TestOptionsEndpointHidesSecrets(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/jo")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if _, ok := got["dkey"]; ok {
		t.Error("dkey exposed")
	}
	if got["name"] != "My Garage" || got["dth"] != float64(50) {
		t.Errorf("options: %v", got)
	}
}

func TestCommandRequiresDeviceKey(t *testing.T) {
	ts, _, fc := newTestServer(t)

	for _, path := range []string{"/cc?click=1", "/cc?dkey=wrong&click=1", "/co?dth=60", "/clearlog", "/resetall"} {
		code, res := getResult(t, ts.URL+path)
		if code != http.StatusUnauthorized || res.Result != resultUnauthorized {
			t.Errorf("%s: got %d %+v", path, code, res)
		}
	}
	if len(fc.commands) != 0 || len(fc.updates) != 0 || fc.cleared || fc.reset {
		t.Errorf("unauthorized request reached the controller: %+v", fc)
	}
}

func TestCommandEndpoint(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"click=1", "click"},
		{"open=1", "open"},
		{"close=1", "close"},
		{"light=toggle", "togglelight"},
		{"lock=toggle", "togglelock"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			ts, _, fc := newTestServer(t)
			code, res := getResult(t, ts.URL+"/cc?dkey=opendoor&"+tt.query)
			if code != http.StatusOK || res.Result != resultOK {
				t.Fatalf("got %d %+v", code, res)
			}
			if diff := cmp.Diff([]string{tt.want}, fc.commands); diff != "" {
				t.Errorf("commands (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCommandRejected(t *testing.T) {
	ts, _, fc := newTestServer(t)
	fc.cmdErr = fmt.Errorf("close while CLOSED: %w", automation.ErrIllegalAction)

	code, res := getResult(t, ts.URL+"/cc?dkey=opendoor&close=1")
	if code != http.StatusConflict || res.Result != resultNotPermitted {
		t.Errorf("got %d %+v", code, res)
	}

	code, res = getResult(t, ts.URL+"/cc?dkey=opendoor")
	if code != http.StatusBadRequest || res.Result != resultMissing {
		t.Errorf("no command: got %d %+v", code, res)
	}
}

func TestChangeOptions(t *testing.T) {
	ts, _, fc := newTestServer(t)

	code, res := getResult(t, ts.URL+"/co?dkey=opendoor&dth=60&name=Barn&fwv=1&bogus=2")
	if code != http.StatusOK || res.Result != resultOK {
		t.Fatalf("got %d %+v", code, res)
	}
	want := []map[string]string{{"dth": "60", "name": "Barn"}}
	if diff := cmp.Diff(want, fc.updates); diff != "" {
		t.Errorf("updates (-want +got):\n%s", diff)
	}
}

func TestChangeDeviceKey(t *testing.T) {
	ts, _, fc := newTestServer(t)

	code, res := getResult(t, ts.URL+"/co?dkey=opendoor&nkey=secret")
	if code != http.StatusBadRequest || res.Result != resultMissing || res.Item != "ckey" {
		t.Errorf("missing ckey: got %d %+v", code, res)
	}
	code, res = getResult(t, ts.URL+"/co?dkey=opendoor&nkey=secret&ckey=other")
	if code != http.StatusBadRequest || res.Result != resultMismatch {
		t.Errorf("mismatch: got %d %+v", code, res)
	}
	code, res = getResult(t, ts.URL+"/co?dkey=opendoor&nkey=secret&ckey=secret")
	if code != http.StatusOK || res.Result != resultOK {
		t.Fatalf("change: got %d %+v", code, res)
	}
	if diff := cmp.Diff([]map[string]string{{"dkey": "secret"}}, fc.updates); diff != "" {
		t.Errorf("updates (-want +got):\n%s", diff)
	}
}

func TestChangeOptionsOutOfRange(t *testing.T) {
	ts, _, fc := newTestServer(t)
	fc.updateErr = fmt.Errorf("option riv: %w", options.ErrOutOfRange)

	code, res := getResult(t, ts.URL+"/co?dkey=opendoor&riv=99")
	if code != http.StatusBadRequest || res.Result != resultOutOfRange {
		t.Errorf("got %d %+v", code, res)
	}
}

func TestClearLogAndReset(t *testing.T) {
	ts, _, fc := newTestServer(t)

	if code, _ := getResult(t, ts.URL+"/clearlog?dkey=opendoor"); code != http.StatusOK || !fc.cleared {
		t.Errorf("clearlog: %d cleared=%v", code, fc.cleared)
	}
	if code, _ := getResult(t, ts.URL+"/resetall?dkey=opendoor"); code != http.StatusOK || !fc.reset {
		t.Errorf("resetall: %d reset=%v", code, fc.reset)
	}
}

func TestMetricsRoute(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "garage_door_status") {
		t.Errorf("metrics body: %s", body)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(status.Door{Status: logic.StatusOpen, Vehicle: logic.VehicleUnknown, Distance: 31}, true, time.Now())

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"<h1>Garage</h1>", `class="open">OPEN`, "31 cm"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}
