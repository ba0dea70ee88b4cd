package genome

import "fmt"

// ConfigError reports an invalid resolution or reference layout. It is raised
// before any scanning takes place.
type ConfigError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// RegionError reports an unknown chromosome or a malformed region request.
type RegionError struct {
	Region string
	Reason string
}

func (e *RegionError) Error() string {
	if e.Region == "" {
		return fmt.Sprintf("region error: %s", e.Reason)
	}
	return fmt.Sprintf("region error: %s: %s", e.Region, e.Reason)
}
