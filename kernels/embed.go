// Package kernels provides the embedded OpenCL C sources of the filter and
// signal operations.
package kernels

import (
	"embed"
	"io/fs"
	"sort"
)

// Sources holds every *.cl file of the package.
//
//go:embed *.cl
var Sources embed.FS

const (
	// Filter is the image convolution program.
	Filter = "filter.cl"
	// DCT is the 1-D and 2-D discrete cosine transform program.
	DCT = "dct.cl"
)

// Get returns the source text of the named program.
func Get(name string) (string, error) {
	data, err := Sources.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Names lists the embedded programs.
func Names() []string {
	entries, _ := fs.ReadDir(Sources, ".")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}
