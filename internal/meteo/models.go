package meteo

import (
	"time"
)

// SampleInterval is the cadence at which the Antarctic stations emit
// observations. The cache coverage check is built on this grid.
const SampleInterval = 10 * time.Minute

// Station identifies one of the AEMET Antarctic observation sites.
type Station string

const (
	StationJuanCarlosI         Station = "89064"   // Estación Meteorológica Juan Carlos I
	StationJuanCarlosIRadio    Station = "89064R"  // Estación Radiométrica Juan Carlos I
	StationJuanCarlosIRadioOld Station = "89064RA" // Estación Radiométrica Juan Carlos I (until 08/03/2007)
	StationGabrielDeCastilla   Station = "89070"   // Estación Meteorológica Gabriel de Castilla
)

// Valid reports whether the station code is one of the known sites.
func (s Station) Valid() bool {
	switch s {
	case StationJuanCarlosI, StationJuanCarlosIRadio, StationJuanCarlosIRadioOld, StationGabrielDeCastilla:
		return true
	}
	return false
}

// Granularity is the target resampling interval for aggregation.
type Granularity string

const (
	GranularityNone    Granularity = "None"
	GranularityHourly  Granularity = "Hourly"
	GranularityDaily   Granularity = "Daily"
	GranularityMonthly Granularity = "Monthly"
)

// Valid reports whether the granularity is a supported aggregation level.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityNone, GranularityHourly, GranularityDaily, GranularityMonthly:
		return true
	}
	return false
}

// DataType is a requestable weather parameter.
type DataType string

const (
	DataTypeTemperature DataType = "temperature"
	DataTypePressure    DataType = "pressure"
	DataTypeSpeed       DataType = "speed"
)

// Column returns the payload column name a data type maps to.
func (d DataType) Column() (string, bool) {
	switch d {
	case DataTypeTemperature:
		return "temp", true
	case DataTypePressure:
		return "pres", true
	case DataTypeSpeed:
		return "vel", true
	}
	return "", false
}

// coreColumns are the payload columns a complete observation must carry.
// Rows missing any selected core column are dropped during assembly.
var coreColumns = []string{"temp", "vel", "pres"}

// Observation is a single ten-minute sample from a station. Optional
// numeric fields are pointers so that an absent upstream value survives
// the round trip through the cache as null instead of zero.
type Observation struct {
	StationID string `json:"identificacion"`
	Name      string `json:"nombre"`

	// Time is the canonical sampling instant, always normalized to UTC
	// in the store and converted to the requested zone on the way out.
	// It is serialized through FHora rather than directly.
	Time time.Time `json:"-"`

	// FHora carries the upstream textual timestamp. Its formatting may
	// differ from the stored instant (offset notation, missing zone) and
	// is preserved as received.
	FHora string `json:"fhora"`

	Latitud  *float64 `json:"latitud,omitempty"`
	Longitud *float64 `json:"longitud,omitempty"`
	Altitud  *float64 `json:"altitud,omitempty"`
	Temp     *float64 `json:"temp,omitempty"`
	Pres     *float64 `json:"pres,omitempty"`
	Vel      *float64 `json:"vel,omitempty"`
	Ddd      *float64 `json:"ddd,omitempty"`
	Hr       *float64 `json:"hr,omitempty"`
	Ins      *float64 `json:"ins,omitempty"`
	Rad      *float64 `json:"rad,omitempty"`
	Ttierra  *float64 `json:"ttierra,omitempty"`
	Nieve    *float64 `json:"nieve,omitempty"`
	Albedo   *float64 `json:"albedo,omitempty"`
}

// numericField gives the aggregator uniform access to every numeric
// payload column without reflecting over the struct.
type numericField struct {
	column string
	get    func(*Observation) *float64
	set    func(*Observation, *float64)
}

var numericFields = []numericField{
	{"latitud", func(o *Observation) *float64 { return o.Latitud }, func(o *Observation, v *float64) { o.Latitud = v }},
	{"longitud", func(o *Observation) *float64 { return o.Longitud }, func(o *Observation, v *float64) { o.Longitud = v }},
	{"altitud", func(o *Observation) *float64 { return o.Altitud }, func(o *Observation, v *float64) { o.Altitud = v }},
	{"temp", func(o *Observation) *float64 { return o.Temp }, func(o *Observation, v *float64) { o.Temp = v }},
	{"pres", func(o *Observation) *float64 { return o.Pres }, func(o *Observation, v *float64) { o.Pres = v }},
	{"vel", func(o *Observation) *float64 { return o.Vel }, func(o *Observation, v *float64) { o.Vel = v }},
	{"ddd", func(o *Observation) *float64 { return o.Ddd }, func(o *Observation, v *float64) { o.Ddd = v }},
	{"hr", func(o *Observation) *float64 { return o.Hr }, func(o *Observation, v *float64) { o.Hr = v }},
	{"ins", func(o *Observation) *float64 { return o.Ins }, func(o *Observation, v *float64) { o.Ins = v }},
	{"rad", func(o *Observation) *float64 { return o.Rad }, func(o *Observation, v *float64) { o.Rad = v }},
	{"ttierra", func(o *Observation) *float64 { return o.Ttierra }, func(o *Observation, v *float64) { o.Ttierra = v }},
	{"nieve", func(o *Observation) *float64 { return o.Nieve }, func(o *Observation, v *float64) { o.Nieve = v }},
	{"albedo", func(o *Observation) *float64 { return o.Albedo }, func(o *Observation, v *float64) { o.Albedo = v }},
}

// Column returns the named numeric payload value, or nil when absent.
func (o *Observation) Column(name string) *float64 {
	for _, f := range numericFields {
		if f.column == name {
			return f.get(o)
		}
	}
	return nil
}
