/*
Package share encodes the current settings into a link that restores them, renders that link as QR code and keeps
short links in a small SQLite database.
*/
package share

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ftl/wsprglobe/core"
	"github.com/ftl/wsprglobe/core/bandplan"
)

// ValidMaxSpots lists the accepted values of the maxSpots parameter.
var ValidMaxSpots = []int{100, 500, 1000, 5000, 10000, 25000, 50000, 100000}

// ValidMaxLines lists the accepted values of the maxLines parameter, 0 means "all".
var ValidMaxLines = []int{0, 200, 500, 1000, 2000, 5000}

// Encode the given settings into link parameters. Only values that differ from base are included, so the link
// restores the settings when it is decoded against the same base.
func Encode(settings core.Settings, base core.Settings, plan bandplan.Bandplan) url.Values {
	values := url.Values{}
	q := settings.Query
	d := settings.Display
	bq := base.Query
	bd := base.Display

	if rx := strings.ToUpper(q.RxCall); rx != strings.ToUpper(bq.RxCall) {
		values.Set("rx", rx)
	}
	if tx := strings.ToUpper(q.TxCall); tx != strings.ToUpper(bq.TxCall) {
		values.Set("tx", tx)
	}
	if q.WindowMinutes != bq.WindowMinutes && q.WindowMinutes > 0 {
		values.Set("window", strconv.Itoa(q.WindowMinutes))
	}
	if q.DaysAgo != bq.DaysAgo && q.DaysAgo >= 0 {
		values.Set("days", strconv.Itoa(q.DaysAgo))
	}
	if q.HoursAgo != bq.HoursAgo && q.HoursAgo >= 0 {
		values.Set("hours", strconv.Itoa(q.HoursAgo))
	}
	if q.MaxSpots != bq.MaxSpots && q.MaxSpots > 0 {
		values.Set("maxSpots", strconv.Itoa(q.MaxSpots))
	}
	if d.MaxDisplay != bd.MaxDisplay {
		if d.MaxDisplay == 0 {
			values.Set("maxLines", "all")
		} else {
			values.Set("maxLines", strconv.Itoa(d.MaxDisplay))
		}
	}

	if !sameBands(d.Bands, bd.Bands, plan) {
		selected := make([]string, 0, len(plan))
		for _, band := range plan {
			if d.Bands.Contains(band.Key) {
				selected = append(selected, string(band.Key))
			}
		}
		values.Set("bands", strings.Join(selected, ","))
	}

	flags := []struct {
		key          string
		value, baseValue bool
	}{
		{"animateLines", d.AnimateLines, bd.AnimateLines},
		{"solidLines", d.SolidLines, bd.SolidLines},
		{"showMarkers", d.ShowMarkers, bd.ShowMarkers},
		{"heatmap", d.Heatmap, bd.Heatmap},
		{"beacon", d.Beacon, bd.Beacon},
		{"allowWeird", !d.ExcludeOddCallsigns, !bd.ExcludeOddCallsigns},
		{"timelapse", d.Timelapse, bd.Timelapse},
	}
	for _, flag := range flags {
		if flag.value != flag.baseValue {
			values.Set(flag.key, flagValue(flag.value))
		}
	}

	if d.Timelapse {
		if minutes := int(d.TimelapseWindow / time.Minute); d.TimelapseWindow != bd.TimelapseWindow && minutes > 0 {
			values.Set("timelapseWindow", strconv.Itoa(minutes))
		}
		if d.TimelapseSpeed != bd.TimelapseSpeed && d.TimelapseSpeed > 0 {
			values.Set("timelapseSpeed", strconv.FormatFloat(d.TimelapseSpeed, 'f', -1, 64))
		}
	}
	return values
}

func sameBands(a, b core.BandSet, plan bandplan.Bandplan) bool {
	for _, band := range plan {
		if a.Contains(band.Key) != b.Contains(band.Key) {
			return false
		}
	}
	return true
}

func flagValue(value bool) string {
	if value {
		return "1"
	}
	return "0"
}

// URL returns the share link for the given settings below the base URL. Parameters are encoded relative to defaults.
func URL(baseURL string, settings core.Settings, defaults core.Settings, plan bandplan.Bandplan) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", errors.Wrapf(err, "invalid base URL %q", baseURL)
	}
	u.RawQuery = Encode(settings, defaults, plan).Encode()
	u.Fragment = ""
	return u.String(), nil
}

// Decode applies the link parameters to base and returns the resulting settings. Invalid values are ignored.
// autoLoad reports whether the spots should be loaded immediately: either autoLoad is set explicitly, or any
// parameter was recognized and autoLoad is not explicitly disabled.
func Decode(values url.Values, base core.Settings, plan bandplan.Bandplan) (settings core.Settings, autoLoad bool) {
	settings = base.Copy()
	found := false
	q := &settings.Query
	d := &settings.Display

	if v, ok := values["rx"]; ok && len(v) > 0 {
		q.RxCall = strings.ToUpper(v[0])
		found = true
	}
	if v, ok := values["tx"]; ok && len(v) > 0 {
		q.TxCall = strings.ToUpper(v[0])
		found = true
	}
	if n, ok := positiveInt(values, "window"); ok {
		q.WindowMinutes = n
		found = true
	}
	if n, ok := nonNegativeInt(values, "days"); ok {
		q.DaysAgo = n
		found = true
	}
	if n, ok := nonNegativeInt(values, "hours"); ok {
		q.HoursAgo = n
		found = true
	}
	if v := values.Get("maxSpots"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && contains(ValidMaxSpots, n) {
			q.MaxSpots = n
			found = true
		}
	}
	if v := values.Get("maxLines"); v != "" {
		n, err := strconv.Atoi(v)
		if v == "all" {
			n, err = 0, nil
		}
		if err == nil && contains(ValidMaxLines, n) {
			d.MaxDisplay = n
			found = true
		}
	}
	if v, ok := values["bands"]; ok && len(v) > 0 {
		bands := core.NewBandSet()
		for _, token := range strings.Split(v[0], ",") {
			key := core.BandKey(strings.TrimSpace(token))
			if _, known := plan.ByKey(key); known {
				bands[key] = true
			}
		}
		d.Bands = bands
		found = true
	}

	flags := []struct {
		key    string
		target *bool
		invert bool
	}{
		{"animateLines", &d.AnimateLines, false},
		{"solidLines", &d.SolidLines, false},
		{"showMarkers", &d.ShowMarkers, false},
		{"heatmap", &d.Heatmap, false},
		{"beacon", &d.Beacon, false},
		{"allowWeird", &d.ExcludeOddCallsigns, true},
		{"timelapse", &d.Timelapse, false},
	}
	for _, flag := range flags {
		v, ok := values[flag.key]
		if !ok {
			continue
		}
		value := len(v) > 0 && truthy(v[0])
		*flag.target = value != flag.invert
		found = true
	}

	if n, ok := positiveInt(values, "timelapseWindow"); ok {
		d.TimelapseWindow = time.Duration(n) * time.Minute
		found = true
	}
	if v := values.Get("timelapseSpeed"); v != "" {
		if speed, err := strconv.ParseFloat(v, 64); err == nil && speed > 0 {
			d.TimelapseSpeed = speed
			found = true
		}
	}

	if v, ok := values["autoLoad"]; ok && len(v) > 0 {
		autoLoad = truthy(v[0]) || (found && v[0] != "false" && v[0] != "0")
	} else {
		autoLoad = found
	}
	return settings, autoLoad
}

func truthy(s string) bool {
	return s == "true" || s == "1"
}

func positiveInt(values url.Values, key string) (int, bool) {
	n, ok := nonNegativeInt(values, key)
	return n, ok && n > 0
}

func nonNegativeInt(values url.Values, key string) (int, bool) {
	v := values.Get(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func contains(values []int, n int) bool {
	for _, v := range values {
		if v == n {
			return true
		}
	}
	return false
}
