// Package client is the HTTP transport used to talk to an XNAT-style
// repository server.
//
// # Building a Client
//
// Use [Build] with functional options:
//
//	c, err := client.Build(
//		client.WithTimeout(5 * time.Minute),
//		client.WithUserAgent("xnatzip/1.0"),
//		client.WithThrottle(2, 4),
//	)
//
// # Listing
//
// [Client.GetJSON] decodes a JSON listing into a destination value:
//
//	var rs xnat.ResultSet
//	err = c.GetJSON(ctx, u, &rs)
//
// # Downloading
//
// [Client.Download] streams a response body to disk through a temp
// file that is renamed into place only on success:
//
//	err = c.Download(ctx, u, "/data/p_s_e_Scans_ALL.zip", download.WithProgress())
//
// Authentication is left to the caller; supply headers with
// [WithHeaders] or a pre-configured [http.Client] with [WithClient].
package client
