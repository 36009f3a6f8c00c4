package spots

import (
	"fmt"
	"sort"
	"time"

	"github.com/ftl/wsprglobe/core"
	"github.com/ftl/wsprglobe/core/bandplan"
	"github.com/ftl/wsprglobe/core/geo"
)

// Stats summarize the currently visible spots.
type Stats struct {
	TotalSpots  int              `json:"totalSpots"`
	UniquePaths int              `json:"uniquePaths"`
	Furthest    *FurthestContact `json:"furthest,omitempty"`
	ActiveBand  *BandActivity    `json:"activeBand,omitempty"`
	AverageSNR  *float64         `json:"averageSNR,omitempty"`
	BestSNR     *SNRRecord       `json:"bestSNR,omitempty"`
	BandCounts  map[string]int   `json:"bandCounts"`
	Bands       []BandActivity   `json:"bands"`
}

// FurthestContact is the spot with the longest path.
type FurthestContact struct {
	DistanceKm int       `json:"distanceKm"`
	Spot       core.Spot `json:"spot"`
}

// BandActivity is the number of spots on a band.
type BandActivity struct {
	Band  string `json:"band"`
	Count int    `json:"count"`
}

// SNRRecord is the spot with the best SNR.
type SNRRecord struct {
	SNR  core.DB   `json:"snr"`
	Spot core.Spot `json:"spot"`
}

// Summarize the spots that pass the callsign policy and the band selection.
func Summarize(spots []core.Spot, plan bandplan.Bandplan, selected core.BandSet, excludeOdd bool) Stats {
	result := Stats{BandCounts: make(map[string]int)}
	paths := make(map[string]bool)
	var snrSum float64
	var best *SNRRecord

	for _, spot := range FilterByCallsign(spots, excludeOdd) {
		if !plan.IsIncluded(spot.Frequency, selected) {
			continue
		}
		result.TotalSpots++
		paths[PathKey(spot.TxLoc, spot.RxLoc)] = true

		if distance, ok := geo.LocatorDistanceKm(spot.TxLoc, spot.RxLoc); ok {
			if result.Furthest == nil || distance > result.Furthest.DistanceKm {
				result.Furthest = &FurthestContact{DistanceKm: distance, Spot: spot}
			}
		}

		result.BandCounts[BandLabel(plan.Nearest(spot.Frequency))]++

		snrSum += float64(spot.SNR)
		if best == nil || spot.SNR > best.SNR {
			best = &SNRRecord{SNR: spot.SNR, Spot: spot}
		}
	}
	result.UniquePaths = len(paths)
	result.BestSNR = best

	if result.TotalSpots > 0 {
		average := snrSum / float64(result.TotalSpots)
		result.AverageSNR = &average
		result.ActiveBand = mostActive(result.BandCounts, plan)
	}
	result.Bands = result.SortedBandCounts()
	return result
}

// the first band in plan order wins on equal counts
func mostActive(counts map[string]int, plan bandplan.Bandplan) *BandActivity {
	var result *BandActivity
	for _, b := range plan {
		label := BandLabel(b)
		count := counts[label]
		if count == 0 {
			continue
		}
		if result == nil || count > result.Count {
			result = &BandActivity{Band: label, Count: count}
		}
	}
	return result
}

// BandLabel returns the band label as shown in the stats, e.g. "475 kHz" or "14 MHz".
func BandLabel(b bandplan.Band) string {
	if b.Center < 1 {
		return fmt.Sprintf("%.0f kHz", b.Center*1000)
	}
	return fmt.Sprintf("%s MHz", b.Key)
}

// PathKey returns the unordered key of the path between the two locators.
func PathKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "-" + b
}

// SortedBandCounts returns the band labels ordered by descending count.
func (s Stats) SortedBandCounts() []BandActivity {
	result := make([]BandActivity, 0, len(s.BandCounts))
	for band, count := range s.BandCounts {
		result = append(result, BandActivity{Band: band, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Band < result[j].Band
	})
	return result
}

// Details of a single spot for the click popup.
type Details struct {
	Transmitter string `json:"transmitter"`
	TxGrid      string `json:"txGrid"`
	Receiver    string `json:"receiver"`
	RxGrid      string `json:"rxGrid"`
	Distance    string `json:"distance"`
	Frequency   string `json:"frequency"`
	SNR         string `json:"snr"`
	Power       string `json:"power"`
	Drift       string `json:"drift"`
	Time        string `json:"time"`
}

// Describe the given spot.
func Describe(spot core.Spot) Details {
	distance := "N/A"
	if d, ok := geo.LocatorDistanceKm(spot.TxLoc, spot.RxLoc); ok {
		distance = fmt.Sprintf("%d km", d)
	}
	timestamp := "Unknown"
	if at, ok := ResolveInstant(spot.Time); ok {
		timestamp = at.Format("2006-01-02 15:04:05") + " UTC"
	}
	return Details{
		Transmitter: orUnknown(spot.TxSign),
		TxGrid:      orUnknown(spot.TxLoc),
		Receiver:    orUnknown(spot.RxSign),
		RxGrid:      orUnknown(spot.RxLoc),
		Distance:    distance,
		Frequency:   FormatFrequency(spot.Frequency),
		SNR:         fmt.Sprintf("%.0f dB", float64(spot.SNR)),
		Power:       fmt.Sprintf("%g dBm", float64(spot.Power)),
		Drift:       fmt.Sprintf("%g Hz", float64(spot.Drift)),
		Time:        timestamp,
	}
}

// FormatFrequency shows frequencies below 1 MHz in kHz.
func FormatFrequency(f core.Frequency) string {
	if f.MHz() < 1 {
		return fmt.Sprintf("%.1f kHz", float64(f)/1000)
	}
	return fmt.Sprintf("%.3f MHz", f.MHz())
}

// FormatMinute formats the instant as shown in the beacon trail labels.
func FormatMinute(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04") + " UTC"
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
