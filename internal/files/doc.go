// Package files lists and resolves generated report files.
//
// Discovery looks only at the report directory and only at names that
// match the report naming pattern, so callers can hand user-supplied names
// to Lookup without further path checks.
//
// Example usage:
//
//	discovery := files.NewDiscovery(paths)
//	reports, err := discovery.FindReports()
//	latest, err := discovery.Lookup(reports[0].Name)
package files
