package backup

import (
	"fmt"
	"strings"
	"time"
)

// Summary renders the end-of-run text shown to the operator.
func (r Report) Summary() string {
	var b strings.Builder
	if r.AllSucceeded() {
		b.WriteString("All files got uploaded successfully\n")
	} else {
		fmt.Fprintf(&b, "The following %d files could not be uploaded:\n", len(r.Failed))
		for i, path := range r.Failed {
			fmt.Fprintf(&b, "%3d. %s\n", i+1, path)
		}
	}
	fmt.Fprintf(&b, "Finished after %s\n", r.Duration.Round(time.Millisecond))
	return b.String()
}
