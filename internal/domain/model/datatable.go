package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DataTable maps signal keys (on, off, brightness40, hue120, open, ...) to the
// payload transmitted for them. Keys prefixed with "available" hold step counts.
// Key order follows the configuration, which makes closest-match ties stable.
type DataTable struct {
	keys    []string
	signals map[string]Payload
	numbers map[string]int
}

func (t *DataTable) Set(key string, p Payload) {
	if t.signals == nil {
		t.signals = make(map[string]Payload)
	}
	if _, ok := t.signals[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.signals[key] = p
}

func (t *DataTable) SetNumber(key string, n int) {
	if t.numbers == nil {
		t.numbers = make(map[string]int)
	}
	if _, ok := t.numbers[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.numbers[key] = n
}

func (t DataTable) Signal(key string) (Payload, bool) {
	p, ok := t.signals[key]
	return p, ok && !p.IsZero()
}

func (t DataTable) Number(key string) (int, bool) {
	n, ok := t.numbers[key]
	return n, ok && n != 0
}

// Has reports whether key carries a usable signal or a non-zero number.
func (t DataTable) Has(key string) bool {
	if _, ok := t.Signal(key); ok {
		return true
	}
	_, ok := t.Number(key)
	return ok
}

func (t DataTable) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Values returns the numeric suffixes of all signal keys starting with prefix,
// in table order. brightness+ and similar non-numeric suffixes are skipped.
func (t DataTable) Values(prefix string) []int {
	var values []int
	for _, k := range t.keys {
		if _, ok := t.signals[k]; !ok || !strings.HasPrefix(k, prefix) {
			continue
		}
		v, err := strconv.Atoi(strings.TrimPrefix(k, prefix))
		if err != nil {
			continue
		}
		values = append(values, v)
	}
	return values
}

type rawRepeatStep struct {
	Data      string  `yaml:"data"`
	Interval  float64 `yaml:"interval"`
	SendCount int     `yaml:"sendCount"`
}

func (t *DataTable) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("data: expected a mapping, got %s", node.Tag)
	}
	*t = DataTable{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]

		switch {
		case strings.HasPrefix(key, "available"):
			var n int
			if err := val.Decode(&n); err != nil {
				return fmt.Errorf("data.%s: %w", key, err)
			}
			t.SetNumber(key, n)
		case val.Kind == yaml.ScalarNode:
			t.Set(key, Signal(val.Value))
		case val.Kind == yaml.SequenceNode:
			var raw []rawRepeatStep
			if err := val.Decode(&raw); err != nil {
				return fmt.Errorf("data.%s: %w", key, err)
			}
			p := Payload{}
			for _, r := range raw {
				count := r.SendCount
				if count == 0 {
					count = 1
				}
				p.Steps = append(p.Steps, RepeatStep{
					Data:      r.Data,
					Interval:  Seconds(r.Interval),
					SendCount: count,
				})
			}
			t.Set(key, p)
		default:
			return fmt.Errorf("data.%s: unsupported value", key)
		}
	}
	return nil
}

func (t DataTable) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range t.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: k}
		valNode := &yaml.Node{}
		if n, ok := t.numbers[k]; ok {
			if err := valNode.Encode(n); err != nil {
				return nil, err
			}
		} else {
			p := t.signals[k]
			if !p.IsRepeat() {
				valNode = &yaml.Node{Kind: yaml.ScalarNode, Value: p.Data}
			} else {
				raw := make([]rawRepeatStep, 0, len(p.Steps))
				for _, s := range p.Steps {
					raw = append(raw, rawRepeatStep{Data: s.Data, Interval: s.Interval.Seconds(), SendCount: s.SendCount})
				}
				if err := valNode.Encode(raw); err != nil {
					return nil, err
				}
			}
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

// Seconds converts a configured float number of seconds.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
