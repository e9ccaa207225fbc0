package options

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaults(t *testing.T) {
	o := Defaults()
	if o.Int(DoorThreshold) != 50 || o.Int(VehicleThreshold) != 150 {
		t.Errorf("thresholds: got %d/%d", o.Int(DoorThreshold), o.Int(VehicleThreshold))
	}
	if o.Str(DeviceKey) != "opendoor" {
		t.Errorf("dkey: got %q", o.Str(DeviceKey))
	}
	if o.Int(FirmwareVersion) != Version {
		t.Errorf("fwv: got %d", o.Int(FirmwareVersion))
	}
}

func TestSchemaNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range Keys() {
		n := k.String()
		if n == "" || seen[n] {
			t.Errorf("key %d: bad or duplicate name %q", k, n)
		}
		seen[n] = true
		if got, ok := Lookup(n); !ok || got != k {
			t.Errorf("Lookup(%q) = %d, %v", n, got, ok)
		}
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{"int ok", "dth", "75", nil},
		{"int max", "riv", "30", nil},
		{"int over max", "riv", "31", ErrOutOfRange},
		{"negative", "cdt", "-1", ErrOutOfRange},
		{"under min", "lsz", "10", ErrOutOfRange},
		{"unknown", "bogus", "1", ErrUnknownOption},
		{"string", "name", "Shed", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Defaults()
			err := o.Set(tt.key, tt.value)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestSetRejectsGarbage(t *testing.T) {
	o := Defaults()
	if err := o.Set("dth", "abc"); err == nil {
		t.Error("expected parse error")
	}
	if err := o.Set("name", "a\nb"); err == nil {
		t.Error("expected line-break error")
	}
	d := Defaults()
	if o.Int(DoorThreshold) != 50 || o.Str(Name) != d.Str(Name) {
		t.Error("failed set must not change values")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	o := Defaults()
	o.Set("dth", "80")
	o.Set("name", "Barn door")
	o.Set("mqtp", "garage/main")

	var buf bytes.Buffer
	if _, err := o.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "fwv:126\nsn1:0\n") {
		t.Errorf("unexpected layout:\n%s", buf.String())
	}

	got := Defaults()
	if err := got.Read(&buf); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(o.Public(), got.Public()); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestReadSkipsUnknownAndBadValues(t *testing.T) {
	in := "old:1\ndth:99\nriv:999\nvth:xyz\nname:Shed\n"
	o := Defaults()
	if err := o.Read(strings.NewReader(in)); err != nil {
		t.Fatal(err)
	}
	if o.Int(DoorThreshold) != 99 {
		t.Errorf("dth: got %d", o.Int(DoorThreshold))
	}
	if o.Int(ReadInterval) != 1 || o.Int(VehicleThreshold) != 150 {
		t.Error("invalid values should keep defaults")
	}
	if o.Str(Name) != "Shed" {
		t.Errorf("name: got %q", o.Str(Name))
	}
}

func TestReadStopsAfterSchemaSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i <= int(numKeys); i++ {
		b.WriteString("junk:1\n")
	}
	b.WriteString("dth:77\n")

	o := Defaults()
	if err := o.Read(strings.NewReader(b.String())); err != nil {
		t.Fatal(err)
	}
	if o.Int(DoorThreshold) != 50 {
		t.Errorf("lines past the limit should be ignored, dth=%d", o.Int(DoorThreshold))
	}
}

func TestPublicExcludesSecrets(t *testing.T) {
	o := Defaults()
	pub := o.Public()
	for _, secret := range []string{"dkey", "mqpw", "apwd"} {
		if _, ok := pub[secret]; ok {
			t.Errorf("%s leaked", secret)
		}
	}
	if pub["dth"] != 50 || pub["name"] != o.Str(Name) {
		t.Errorf("unexpected public values: %v", pub)
	}
}

func TestFileSetup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.txt")
	f := NewFile(path)

	o, err := f.Setup()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file not created: %v", err)
	}

	o.Set("dth", "42")
	if err := f.Save(o); err != nil {
		t.Fatal(err)
	}
	got, err := f.Setup()
	if err != nil {
		t.Fatal(err)
	}
	if got.Int(DoorThreshold) != 42 {
		t.Errorf("dth: got %d", got.Int(DoorThreshold))
	}

	if err := f.Reset(); err != nil {
		t.Fatal(err)
	}
	got, err = f.Setup()
	if err != nil {
		t.Fatal(err)
	}
	if got.Int(DoorThreshold) != 50 {
		t.Errorf("after reset dth: got %d", got.Int(DoorThreshold))
	}
}

func TestFileSetupResavesOnVersionChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.txt")
	if err := os.WriteFile(path, []byte("fwv:100\ndth:60\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	o, err := NewFile(path).Setup()
	if err != nil {
		t.Fatal(err)
	}
	if o.Int(FirmwareVersion) != Version || o.Int(DoorThreshold) != 60 {
		t.Errorf("got fwv=%d dth=%d", o.Int(FirmwareVersion), o.Int(DoorThreshold))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "fwv:126\n") || !strings.Contains(string(data), "recp:") {
		t.Errorf("file not re-saved with full schema:\n%s", data)
	}
}
