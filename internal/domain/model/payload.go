package model

import (
	"fmt"
	"strings"
	"time"
)

// Payload is what gets handed to a Sender: either a single signal or a list of
// repeat steps.
type Payload struct {
	Data  string
	Steps []RepeatStep
}

// RepeatStep means "send Data SendCount times, Interval apart".
type RepeatStep struct {
	Data      string        `yaml:"data" json:"data"`
	Interval  time.Duration `yaml:"-" json:"-"`
	SendCount int           `yaml:"sendCount" json:"sendCount"`
}

func Signal(data string) Payload {
	return Payload{Data: data}
}

func Repeat(data string, interval time.Duration, sendCount int) Payload {
	return Payload{Steps: []RepeatStep{{Data: data, Interval: interval, SendCount: sendCount}}}
}

func (p Payload) IsZero() bool {
	return p.Data == "" && len(p.Steps) == 0
}

func (p Payload) IsRepeat() bool {
	return len(p.Steps) > 0
}

func (p Payload) String() string {
	if !p.IsRepeat() {
		return abbreviate(p.Data)
	}
	parts := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		parts = append(parts, fmt.Sprintf("%s x%d every %s", abbreviate(s.Data), s.SendCount, s.Interval))
	}
	return strings.Join(parts, ", ")
}

func abbreviate(s string) string {
	if len(s) <= 16 {
		return s
	}
	return s[:16] + "..."
}
