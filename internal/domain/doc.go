// Package domain models river-gage telemetry pulled from public water-data
// sources.
//
// # Data Sources
//
// Readings come from four upstream interfaces, none of which is under this
// project's control:
//
//   - USGS: the public gage page (waterdata.usgs.gov/nwis/uv) embeds a
//     hydrograph image and a short current-value blurb per measured parameter.
//     Parameters are anchored with name="gifno-99" and labeled either
//     "Discharge, cubic feet per second" or "Gage height, feet". The
//     instantaneous-values JSON API (waterservices.usgs.gov/nwis/iv) is the
//     authoritative source for the 7-day series; the scraped page value is a
//     legacy fallback.
//   - DWR: the Colorado Division of Water Resources REST API, filtered by
//     station abbreviation (e.g. PLAGRACO) and parameter code (DISCHRG, or
//     STORAGE for reservoir gages). Entries carry measValue/measDateTime with
//     second-resolution local timestamps.
//   - WYSEO: the Wyoming State Engineer's Office seoflow dataset-grid
//     endpoint. A POST with a date range returns Data[].{Value,TimeStamp} in
//     UTC; timestamps are converted to US Mountain time before storage.
//   - PRR: the Poudre Rock Report, a hand-maintained blog. The entry header
//     reads like "Pine View 3.4 at 0700" with a byline "May 31, 2022 By ...".
//     Neither line is contractually stable.
//
// # Stored Format
//
// Each gage owns one flat data file, <id>.cfs, one reading per line:
//
//	value,date,time
//
// with date formatted 2006-01-02 and time 15:04:05. Field order and the comma
// separator are load-bearing for the dashboard; do not change them. Values in
// cfs or ac-ft are truncated to integers on write, stage values in feet keep
// their decimals.
//
// # Virtual Gages
//
// A virtual gage's series is computed from two real gages' stored series
// rather than fetched: either an aligned subtraction (difference) or a
// reservoir inflow estimate (rate of change of storage, at 1 cfs = 1/12
// ac-ft/h, plus the downstream flow). Recipes are declared in the gage
// registry, not hard-coded per id.
package domain
