// Command tagglue runs element monitors and trackers against a live page, for
// developing and checking tag-management glue configuration.
//
//	tagglue check --config glue.yaml
//	tagglue watch --config glue.yaml --url https://app.example.com/
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
