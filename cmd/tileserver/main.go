// Command tileserver serves weather map tiles on demand from a chunked
// gridded data store, or exports/pre-warms them offline.
package main

import "github.com/weathertiles/core/internal/cmd"

func main() {
	cmd.Execute()
}
