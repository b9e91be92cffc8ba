// Command prtip is the CLI entry point, grounded on cmd/agent/root.go's
// thin main()+Execute() split (package main here holds no logic beyond the
// call into internal/cliapp, matching the teacher's pattern of keeping all
// command wiring inside the importable package instead of main itself).
package main

import "prtip/internal/cliapp"

func main() {
	cliapp.Execute()
}
