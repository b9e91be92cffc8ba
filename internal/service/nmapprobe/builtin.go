package nmapprobe

import _ "embed"

//go:embed probes.txt
var builtinProbes string

// Builtin returns the embedded default probe set's raw nmap-service-probes
// text, used when the operator supplies no external probe file.
func Builtin() string {
	return builtinProbes
}
