// Package xnatzip downloads server-side zip bundles of imaging data
// from an XNAT repository without clobbering local files.
package xnatzip

import (
	"fmt"

	"github.com/adamwoolhether/xnatzip/client"
	"github.com/adamwoolhether/xnatzip/xnat"
)

// Connect builds a client with opts and returns an Interface for the
// server at serverURL. If no options are given the default
// http.Client and http.Transport are used.
func Connect(serverURL string, opts ...client.Option) (*xnat.Interface, error) {
	c, err := client.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("building client: %w", err)
	}

	return xnat.New(serverURL, xnat.WithClient(c))
}
