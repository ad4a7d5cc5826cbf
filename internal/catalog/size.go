package catalog

import "fmt"

// FormatSize renders a size given in kilobytes as Kb, Mb or Gb
func FormatSize(kb float64) string {
	if kb < 1000 {
		return fmt.Sprintf("%.0f Kb", kb)
	}
	mb := kb / 1024
	if mb < 1000 {
		return fmt.Sprintf("%.0f Mb", mb)
	}
	return fmt.Sprintf("%.2f Gb", mb/1024)
}
