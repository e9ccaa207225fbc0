// Package options holds the device configuration: a closed set of named
// integer and string options persisted as key:value lines.
package options

// Version is written to the fwv option. A stored value that differs forces
// a re-save so new keys get their defaults on disk.
const Version = 126

// Key identifies one option.
type Key int

const (
	FirmwareVersion  Key = iota // fwv
	Mount                       // sn1: 0 ceiling, 1 side
	Switch                      // sn2: 0 none, 1 normally closed, 2 normally open
	Logic                       // sno: 0 primary only, 1 secondary only, 2 and, 3 or
	ExternalDecoder             // secv: 0 none, 1 toggle-only decoder, 2 decoder with open/close
	DoorThreshold               // dth, cm
	VehicleThreshold            // vth, cm; 0 disables vehicle detection
	ReadInterval                // riv, seconds
	Alarm                       // alm: 0 none, 1 5s, 2 10s
	NoAlarmOnOpen               // aoo
	LogSize                     // lsz
	HTTPPort                    // htp
	ClickTime                   // cdt, ms
	DistanceInterval            // dri, ms
	Filter                      // sfi: 0 median, 1 consensus
	ConsensusMargin             // cmr, cm
	TimeoutCap                  // sto: 0 discard, 1 cap
	ClimateSensor               // tsn: 0 none, 1 AM2320 (retired), 2 DHT11, 3 DHT22, 4 DS18B20
	AutoInterval                // ati, minutes
	AutoIntervalRule            // ato
	AutoHour                    // atib, UTC hour
	AutoHourRule                // atob
	Notify                      // noto
	Name
	DeviceKey
	IFTTTKey
	MQTTEnable
	MQTTServer
	MQTTPort
	MQTTUser
	MQTTPassword
	MQTTTopic
	EmailEnable
	SMTPServer
	SMTPPort
	SMTPSender
	SMTPPassword
	Recipient

	numKeys
)

// Def describes one option. A non-zero Max marks an integer option.
type Def struct {
	Name   string
	Int    int
	Min    int
	Max    int
	Str    string
	Secret bool
}

// IsInt reports whether the option holds an integer.
func (d Def) IsInt() bool {
	return d.Max > 0
}

var defs = [numKeys]Def{
	FirmwareVersion:  {Name: "fwv", Int: Version, Max: 255},
	Mount:            {Name: "sn1", Int: 0, Max: 1},
	Switch:           {Name: "sn2", Int: 0, Max: 2},
	Logic:            {Name: "sno", Int: 0, Max: 3},
	ExternalDecoder:  {Name: "secv", Int: 0, Max: 2},
	DoorThreshold:    {Name: "dth", Int: 50, Max: 65535},
	VehicleThreshold: {Name: "vth", Int: 150, Max: 65535},
	ReadInterval:     {Name: "riv", Int: 1, Min: 1, Max: 30},
	Alarm:            {Name: "alm", Int: 1, Max: 2},
	NoAlarmOnOpen:    {Name: "aoo", Int: 0, Max: 1},
	LogSize:          {Name: "lsz", Int: 100, Min: 20, Max: 400},
	HTTPPort:         {Name: "htp", Int: 80, Max: 65535},
	ClickTime:        {Name: "cdt", Int: 1000, Min: 50, Max: 5000},
	DistanceInterval: {Name: "dri", Int: 500, Min: 50, Max: 3000},
	Filter:           {Name: "sfi", Int: 1, Max: 1},
	ConsensusMargin:  {Name: "cmr", Int: 10, Max: 100},
	TimeoutCap:       {Name: "sto", Int: 0, Max: 1},
	ClimateSensor:    {Name: "tsn", Int: 0, Max: 4},
	AutoInterval:     {Name: "ati", Int: 30, Max: 720},
	AutoIntervalRule: {Name: "ato", Int: 0, Max: 255},
	AutoHour:         {Name: "atib", Int: 3, Max: 24},
	AutoHourRule:     {Name: "atob", Int: 0, Max: 255},
	Notify:           {Name: "noto", Int: 3, Max: 255},
	Name:             {Name: "name", Str: "My Garage"},
	DeviceKey:        {Name: "dkey", Str: "opendoor", Secret: true},
	IFTTTKey:         {Name: "iftt"},
	MQTTEnable:       {Name: "mqen", Int: 0, Max: 1},
	MQTTServer:       {Name: "mqtt"},
	MQTTPort:         {Name: "mqpt", Int: 1883, Max: 65535},
	MQTTUser:         {Name: "mqur"},
	MQTTPassword:     {Name: "mqpw", Secret: true},
	MQTTTopic:        {Name: "mqtp"},
	EmailEnable:      {Name: "emen", Int: 0, Max: 1},
	SMTPServer:       {Name: "smtp", Str: "smtp.gmail.com"},
	SMTPPort:         {Name: "sprt", Int: 465, Max: 65535},
	SMTPSender:       {Name: "send"},
	SMTPPassword:     {Name: "apwd", Secret: true},
	Recipient:        {Name: "recp"},
}

var byName = func() map[string]Key {
	m := make(map[string]Key, numKeys)
	for k, d := range defs {
		m[d.Name] = Key(k)
	}
	return m
}()

// Keys returns every key in schema order.
func Keys() []Key {
	ks := make([]Key, numKeys)
	for i := range ks {
		ks[i] = Key(i)
	}
	return ks
}

// Lookup finds a key by its persisted name.
func Lookup(name string) (Key, bool) {
	k, ok := byName[name]
	return k, ok
}

// Def returns the schema entry for k.
func (k Key) Def() Def {
	return defs[k]
}

func (k Key) String() string {
	if k < 0 || k >= numKeys {
		return "unknown"
	}
	return defs[k].Name
}
