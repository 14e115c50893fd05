package npc

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads "2.5s" style strings from YAML and
// JSON. Bare JSON numbers are seconds.
type Duration struct {
	time.Duration
}

func Seconds(s float64) Duration {
	return Duration{time.Duration(s * float64(time.Second))}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*d = Seconds(t)
		return nil
	case string:
		p, err := time.ParseDuration(t)
		if err != nil {
			return err
		}
		d.Duration = p
		return nil
	}
	return fmt.Errorf("invalid duration %s", b)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	if p, err := time.ParseDuration(node.Value); err == nil {
		d.Duration = p
		return nil
	}
	var secs float64
	if err := node.Decode(&secs); err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, node.Value)
	}
	*d = Seconds(secs)
	return nil
}
