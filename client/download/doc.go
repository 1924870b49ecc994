// Package download streams a response body to disk.
//
// [Handle] writes into a temporary file beside the destination and
// renames it into place only once the body has been read completely,
// so a failed transfer never leaves a truncated archive at destPath:
//
//	err := download.Handle(ctx, resp.Body, resp.ContentLength, destPath, logger,
//		download.WithProgress(),
//	)
//
// Most callers go through [github.com/adamwoolhether/xnatzip/client.Client.Download].
package download
