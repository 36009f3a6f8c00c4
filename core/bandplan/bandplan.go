package bandplan

import (
	"fmt"
	"math"
	"strconv"

	"github.com/ftl/wsprglobe/core"
)

// Band represents a WSPR band.
type Band struct {
	Key    core.BandKey
	Name   BandName
	Center float64 // MHz
	Color  string

	// Range is only used to build remote queries. Membership is always decided by the nearest center.
	Range core.FrequencyRange
}

func (b Band) String() string {
	return string(b.Name)
}

// UnknownBand is returned when no band can be found.
var UnknownBand = Band{Name: BandUnknown, Color: "#ffffff"}

// BandName is the name of a frequency band.
type BandName string

// All WSPR bands.
const (
	BandUnknown BandName = "Unknown"
	Band2200m   BandName = "2200m"
	Band630m    BandName = "630m"
	Band160m    BandName = "160m"
	Band80m     BandName = "80m"
	Band60m     BandName = "60m"
	Band40m     BandName = "40m"
	Band30m     BandName = "30m"
	Band20m     BandName = "20m"
	Band17m     BandName = "17m"
	Band15m     BandName = "15m"
	Band12m     BandName = "12m"
	Band10m     BandName = "10m"
	Band6m      BandName = "6m"
	Band2m      BandName = "2m"
)

// Bandplan is a list of bands in ascending order of their center frequency.
type Bandplan []Band

func band(key core.BandKey, name BandName, color string, from, to core.Frequency) Band {
	center, _ := strconv.ParseFloat(string(key), 64)
	return Band{
		Key:    key,
		Name:   name,
		Center: center,
		Color:  color,
		Range:  core.FrequencyRange{From: from, To: to},
	}
}

// WSPR is the bandplan of all bands with WSPR activity.
var WSPR = Bandplan{
	band("0.137", Band2200m, "#ff0000", 136000, 138000),
	band("0.475", Band630m, "#ff6600", 474000, 480000),
	band("1.8", Band160m, "#ffcc00", 1800000, 1900000),
	band("3.5", Band80m, "#99ff00", 3500000, 3600000),
	band("5.3", Band60m, "#66ff00", 5200000, 5500000),
	band("7", Band40m, "#00ff00", 7000000, 7100000),
	band("10", Band30m, "#00ff99", 10100000, 10200000),
	band("14", Band20m, "#00ffff", 14000000, 14200000),
	band("18", Band17m, "#0099ff", 18000000, 18200000),
	band("21", Band15m, "#0000ff", 21000000, 21200000),
	band("24", Band12m, "#6600ff", 24800000, 25000000),
	band("28", Band10m, "#9900ff", 28000000, 28300000),
	band("50", Band6m, "#ff00ff", 50000000, 50500000),
	band("144", Band2m, "#ff0099", 144000000, 145000000),
}

// Keys of all bands in the plan.
func (p Bandplan) Keys() []core.BandKey {
	result := make([]core.BandKey, len(p))
	for i, b := range p {
		result[i] = b.Key
	}
	return result
}

// All returns a set with every band of the plan selected.
func (p Bandplan) All() core.BandSet {
	return core.NewBandSet(p.Keys()...)
}

// ByKey returns the band with the given key.
func (p Bandplan) ByKey(key core.BandKey) (Band, bool) {
	for _, b := range p {
		if b.Key == key {
			return b, true
		}
	}
	return UnknownBand, false
}

// Nearest returns the band whose center is closest to the given frequency. On a tie the lower band wins.
func (p Bandplan) Nearest(f core.Frequency) Band {
	result := UnknownBand
	minDiff := math.Inf(1)
	mhz := f.MHz()
	for _, b := range p {
		diff := math.Abs(mhz - b.Center)
		if diff < minDiff {
			minDiff = diff
			result = b
		}
	}
	return result
}

// Color of the band nearest to the given frequency.
func (p Bandplan) Color(f core.Frequency) string {
	return p.Nearest(f).Color
}

// IsIncluded indicates if the band nearest to the given frequency is selected. Nothing is included in an empty selection.
func (p Bandplan) IsIncluded(f core.Frequency, selected core.BandSet) bool {
	if selected.Len() == 0 {
		return false
	}
	return selected.Contains(p.Nearest(f).Key)
}

// IsComplete indicates if the selection covers every band of the plan.
func (p Bandplan) IsComplete(selected core.BandSet) bool {
	for _, b := range p {
		if !selected.Contains(b.Key) {
			return false
		}
	}
	return true
}

// QueryRanges returns the frequency ranges of the selected bands for the remote query. The result is nil if no band
// or every band is selected, as no frequency predicate is needed then.
func (p Bandplan) QueryRanges(selected core.BandSet) []core.FrequencyRange {
	if selected.Len() == 0 || p.IsComplete(selected) {
		return nil
	}
	var result []core.FrequencyRange
	for _, b := range p {
		if selected.Contains(b.Key) {
			result = append(result, b.Range)
		}
	}
	return result
}

// InQueryRange indicates if the given frequency lies within the query range of one of the selected bands.
func (p Bandplan) InQueryRange(f core.Frequency, selected core.BandSet) bool {
	for _, b := range p {
		if selected.Contains(b.Key) && b.Range.Contains(f) {
			return true
		}
	}
	return false
}

// RGBA converts a #rrggbb color into the rgba() notation with the given alpha.
func RGBA(hex string, alpha float64) string {
	r, g, b, ok := parseHex(hex)
	if !ok {
		return hex
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", r, g, b, strconv.FormatFloat(alpha, 'f', -1, 64))
}

func parseHex(hex string) (r, g, b int, ok bool) {
	if len(hex) != 7 || hex[0] != '#' {
		return 0, 0, 0, false
	}
	value, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(value >> 16 & 0xff), int(value >> 8 & 0xff), int(value & 0xff), true
}
