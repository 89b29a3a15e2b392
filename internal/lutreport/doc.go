// Package lutreport summarises and visualises delay-margin lookup tables:
// per-band grid statistics, deltaT sweeps along r rendered as PNG, and
// per-band heatmaps rendered as HTML.
package lutreport
