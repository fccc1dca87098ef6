// Package build exposes the version metadata main.go stamps via -ldflags,
// mirroring cmd/tempo/build's use of prometheus/common/version.
package build

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/common/version"
)

// Info is the subset of prometheus/common/version fields worth reporting
// from a /buildinfo-style endpoint.
type Info struct {
	Version   string
	Revision  string
	Branch    string
	BuildUser string
	BuildDate string
	GoVersion string
}

// GetVersion returns the process's build metadata.
func GetVersion() Info {
	return Info{
		Version:   version.Version,
		Revision:  version.Revision,
		Branch:    version.Branch,
		BuildUser: version.BuildUser,
		BuildDate: version.BuildDate,
		GoVersion: version.GoVersion,
	}
}

// Listener names one of the process's network entry points, for the
// startup status table.
type Listener struct {
	Name string
	Addr string
}

// WriteStartupStatus renders a table of build info and configured
// listener addresses to w, the way cmd/tempo-federated-querier's status
// handler renders its route table with go-pretty.
func WriteStartupStatus(w io.Writer, info Info, listeners []Listener) {
	vt := table.NewWriter()
	vt.SetOutputMirror(w)
	vt.AppendHeader(table.Row{"field", "value"})
	vt.AppendRows([]table.Row{
		{"version", info.Version},
		{"revision", info.Revision},
		{"branch", info.Branch},
		{"build user", info.BuildUser},
		{"build date", info.BuildDate},
		{"go version", info.GoVersion},
	})
	vt.AppendSeparator()
	vt.Render()

	lt := table.NewWriter()
	lt.SetOutputMirror(w)
	lt.AppendHeader(table.Row{"listener", "address"})
	for _, l := range listeners {
		lt.AppendRows([]table.Row{{l.Name, l.Addr}})
	}
	lt.AppendSeparator()
	lt.Render()
}
