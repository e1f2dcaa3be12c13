package core

import (
	"encoding/json"
	"fmt"
)

// JobType identifies a request the controller can queue for the worker.
// The numeric value is the job's priority rank: higher values are sent first.
type JobType int

const (
	JobUpdate JobType = iota
	JobSubset
	JobSVGFont
	JobOTFFont
)

// NumJobTypes is the number of priority slots.
const NumJobTypes = int(JobOTFFont) + 1

// Priorities lists job types in ascending priority order.
var Priorities = [NumJobTypes]JobType{JobUpdate, JobSubset, JobSVGFont, JobOTFFont}

var jobTypeNames = [NumJobTypes]string{"update", "subset", "svgFont", "otfFont"}

// Valid reports whether t is one of the known job types.
func (t JobType) Valid() bool {
	return t >= 0 && int(t) < NumJobTypes
}

// Rank returns the priority slot of t.
func (t JobType) Rank() (int, bool) {
	if !t.Valid() {
		return 0, false
	}
	return int(t), true
}

func (t JobType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("JobType(%d)", int(t))
	}
	return jobTypeNames[t]
}

// MessageType returns the wire type used for jobs of type t.
func (t JobType) MessageType() MessageType {
	return MessageType(t.String())
}

// ParseJobType maps a wire name back to its JobType.
func ParseJobType(name string) (JobType, bool) {
	for i, n := range jobTypeNames {
		if n == name {
			return JobType(i), true
		}
	}
	return 0, false
}

// MessageType is the "type" field of a message exchanged with the worker.
type MessageType string

const (
	MsgFont          MessageType = "font"
	MsgReady         MessageType = "ready"
	MsgSolvingOrders MessageType = "solvingOrders"
	MsgUpdate        MessageType = "update"
	MsgSubset        MessageType = "subset"
	MsgSVGFont       MessageType = "svgFont"
	MsgOTFFont       MessageType = "otfFont"
)

// JobType returns the job type answered by a message of type m.
func (m MessageType) JobType() (JobType, bool) {
	return ParseJobType(string(m))
}

// Message is a single unit of communication with the worker. Data holds the
// encoded JSON payload, so a Message never aliases the sender's memory once
// it has been built.
type Message struct {
	Type  MessageType     `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// NewMessage encodes data into a message of the given type. A nil data
// produces a message without payload.
func NewMessage(typ MessageType, data any) (Message, error) {
	msg := Message{Type: typ}
	if data == nil {
		return msg, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s payload: %w", typ, err)
	}
	msg.Data = raw
	return msg, nil
}

// Decode unmarshals the message payload into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", m.Type, err)
	}
	return nil
}

// Clone returns a copy of m that shares no memory with it.
func (m Message) Clone() Message {
	c := m
	if m.Data != nil {
		c.Data = append(json.RawMessage(nil), m.Data...)
	}
	return c
}

// Values is a set of font parameter values, keyed by parameter name.
type Values map[string]float64

// Clone returns an independent copy of v.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	c := make(Values, len(v))
	for k, x := range v {
		c[k] = x
	}
	return c
}
