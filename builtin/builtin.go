// Package builtin assembles the format registry shipped with the CLI.
package builtin

import (
	"github.com/yigitkonur/cli-localize/android"
	"github.com/yigitkonur/cli-localize/arbfile"
	"github.com/yigitkonur/cli-localize/formats"
	"github.com/yigitkonur/cli-localize/jsonfile"
	"github.com/yigitkonur/cli-localize/pofile"
	"github.com/yigitkonur/cli-localize/propfile"
	"github.com/yigitkonur/cli-localize/srtfile"
	"github.com/yigitkonur/cli-localize/stringsfile"
	"github.com/yigitkonur/cli-localize/yamlfile"
)

// Formats returns a new registry holding every built-in handler, in the
// order they are listed by the formats command.
func Formats() *formats.Registry {
	return formats.MustRegistry(
		srtfile.New(),
		jsonfile.New(),
		pofile.New(),
		android.New(),
		stringsfile.New(),
		yamlfile.New(),
		arbfile.New(),
		propfile.New(),
	)
}
