// Package version exposes build information for the adapter binary.
//
// Values are injected with ldflags:
//
//	go build -ldflags "\
//	  -X github.com/ncobase/runpod/version.Version=1.2.3 \
//	  -X github.com/ncobase/runpod/version.Branch=main \
//	  -X github.com/ncobase/runpod/version.Revision=abc1234 \
//	  -X 'github.com/ncobase/runpod/version.BuiltAt=$(date)'" ./cmd/runpod
//
// Unset values are filled from the VCS stamp the go tool embeds, so a plain
// go build still reports a revision. The version is attached to every log
// entry and served by the version command and the /healthz endpoint.
package version
