package bammatrix

import "fmt"

const (
	major = 0
	minor = 1
	patch = 0
)

// Version returns the library version.
func Version() string {
	return fmt.Sprintf("%d.%d.%d", major, minor, patch)
}
