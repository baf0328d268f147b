// Package domain models San Francisco Police Department incident reports and
// the filter-and-aggregate view computed over them.
//
// # Data Source
//
// Incident reports are published by DataSF as the "Police Department Incident
// Reports: 2018 to Present" dataset (wg3w-h783). The same rows are available
// through the SODA JSON endpoint and as a CSV export. The two surfaces name
// columns differently:
//
//	SODA JSON               CSV export                 canonical
//	incident_date           Incident Date              occurred_date
//	incident_datetime       Incident Datetime          occurred_at
//	analysis_neighborhood   Analysis Neighborhood      neighborhood
//	incident_category       Incident Category          category
//	incident_day_of_week    Incident Day of Week       weekday
//	latitude / longitude    Latitude / Longitude       latitude / longitude
//
// Both are mapped onto [RawIncident] by [RawIncidentFromFields].
//
// # Value Conventions
//
// SODA returns every column as a string, e.g. "2024-01-05T00:00:00.000" for
// dates and "37.7749" for coordinates. The CSV export uses "2024/01/05" and
// "2024/01/05 02:30:00 PM". Values that do not parse under any known layout
// become absent rather than failing the batch.
//
// Hour-of-day is taken from the incident datetime only. DataSF occasionally
// encodes the datetime on a different calendar day than the incident date;
// the two are kept as reported.
//
// # Analysis Neighborhoods
//
// The neighborhood column uses the city's 41-zone Analysis Neighborhood
// geography, which differs from Planning Department and informal names.
// See [AnalysisNeighborhoods].
//
// # Scope
//
// All ingested records are restricted to the calendar years of a [Scope],
// 2018 through 2025 by default.
package domain
