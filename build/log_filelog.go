// +build filelog

package build

import "os"

var logf *os.File

// LoggingType is the build-tag-selected log sink. The filelog tag routes
// output to a plain file instead of the rotating writer.
const LoggingType = LogTypeStdOut

// Write implements io.Writer by appending to the file opened in init.
func (w *LogWriter) Write(b []byte) (int, error) {
	return logf.Write(b)
}

func init() {
	var err error
	logf, err = os.Create("walletcore.log")
	if err != nil {
		panic(err)
	}
}
