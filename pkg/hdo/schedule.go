package hdo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// SlotCount is the number of on/off slots a single entry can hold.
const SlotCount = 10

// Slot is one numbered on/off pair of an entry. Either side may be absent,
// in which case the slot contributes no window but the present side still
// acts as a marker for HourlyForecast.
type Slot struct {
	On     TimeOfDay
	Off    TimeOfDay
	HasOn  bool
	HasOff bool
}

// Window returns the slot as a TimeWindow if both sides are present.
func (s Slot) Window() (TimeWindow, bool) {
	if !s.HasOn || !s.HasOff {
		return TimeWindow{}, false
	}
	return TimeWindow{On: s.On, Off: s.Off}, true
}

// Metadata holds the descriptive fields of an entry. They are never
// interpreted, only carried so a payload can be written back unchanged.
type Metadata struct {
	ID          json.RawMessage
	ValidFrom   json.RawMessage
	ValidTo     json.RawMessage
	DumpID      json.RawMessage
	Povel       json.RawMessage
	Kod         json.RawMessage
	KodPovelu   json.RawMessage
	Sazba       json.RawMessage
	Info        json.RawMessage
	Doba        json.RawMessage
	DateOfEntry json.RawMessage
	Description json.RawMessage
}

type metadataField struct {
	key   string
	value *json.RawMessage
}

// head and tail fields surround the time slots in the wire order
func (m *Metadata) head() []metadataField {
	return []metadataField{
		{"ID", &m.ID},
		{"VALID_FROM", &m.ValidFrom},
		{"VALID_TO", &m.ValidTo},
		{"DUMP_ID", &m.DumpID},
		{"POVEL", &m.Povel},
		{"KOD", &m.Kod},
		{"KOD_POVELU", &m.KodPovelu},
		{"SAZBA", &m.Sazba},
		{"INFO", &m.Info},
		{"DOBA", &m.Doba},
	}
}

func (m *Metadata) tail() []metadataField {
	return []metadataField{
		{"DATE_OF_ENTRY", &m.DateOfEntry},
		{"DESCRIPTION", &m.Description},
	}
}

// Entry is one row of a schedule: a day range and up to SlotCount on/off
// slots.
type Entry struct {
	Days  DayRange
	Slots [SlotCount]Slot
	Meta  Metadata
}

// NewEntry builds an entry from a day range and on/off times given in pairs,
// e.g. NewEntry("Po - Ne", "0:00", "6:00", "19:00", "21:00").
func NewEntry(days string, times ...string) (Entry, error) {
	if len(times) > 2*SlotCount {
		return Entry{}, fmt.Errorf("too many times for one entry: %d", len(times))
	}
	dr, err := ParseDayRange(days)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{Days: dr}
	for i, text := range times {
		t, err := ParseTime(text)
		if err != nil {
			return Entry{}, fmt.Errorf("slot %d: %w", i/2+1, err)
		}
		slot := &e.Slots[i/2]
		if i%2 == 0 {
			slot.On, slot.HasOn = t, true
		} else {
			slot.Off, slot.HasOff = t, true
		}
	}
	return e, nil
}

// Windows returns the complete on/off windows of the entry in slot order.
func (e Entry) Windows() []TimeWindow {
	var windows []TimeWindow
	for _, s := range e.Slots {
		if w, ok := s.Window(); ok {
			windows = append(windows, w)
		}
	}
	return windows
}

func onKey(i int) string  { return fmt.Sprintf("CAS_ZAP_%d", i+1) }
func offKey(i int) string { return fmt.Sprintf("CAS_VYP_%d", i+1) }

// UnmarshalJSON decodes a single CEZ data row.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Entry
	platnost, ok, err := rawString(raw, "PLATNOST")
	if err != nil {
		return err
	}
	if !ok {
		return &ParseError{Field: "PLATNOST", Err: ErrMalformed}
	}
	if out.Days, err = ParseDayRange(platnost); err != nil {
		return err
	}

	for i := range out.Slots {
		slot := &out.Slots[i]
		if slot.On, slot.HasOn, err = rawTime(raw, onKey(i)); err != nil {
			return err
		}
		if slot.Off, slot.HasOff, err = rawTime(raw, offKey(i)); err != nil {
			return err
		}
	}

	for _, f := range append(out.Meta.head(), out.Meta.tail()...) {
		if v, ok := raw[f.key]; ok {
			*f.value = slices.Clone(v)
		}
	}

	*e = out
	return nil
}

// rawString returns the string at key. A missing key or a JSON null is
// reported as not ok.
func rawString(raw map[string]json.RawMessage, key string) (string, bool, error) {
	v, ok := raw[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false, fmt.Errorf("field %s: %w", key, err)
	}
	return s, true, nil
}

func rawTime(raw map[string]json.RawMessage, key string) (TimeOfDay, bool, error) {
	s, ok, err := rawString(raw, key)
	if err != nil || !ok {
		return TimeOfDay{}, false, err
	}
	t, err := ParseTime(s)
	if err != nil {
		return TimeOfDay{}, false, &ParseError{Field: key, Input: s, Err: ErrInvalidTime}
	}
	return t, true, nil
}

// MarshalJSON writes the entry back in the CEZ field order. Absent slots and
// metadata are omitted.
func (e Entry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, value []byte) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(value)
	}
	writeString := func(key, value string) error {
		b, err := json.Marshal(value)
		if err != nil {
			return err
		}
		write(key, b)
		return nil
	}

	if err := writeString("PLATNOST", e.Days.String()); err != nil {
		return nil, err
	}
	meta := e.Meta
	for _, f := range meta.head() {
		if len(*f.value) > 0 {
			write(f.key, *f.value)
		}
	}
	for i, s := range e.Slots {
		if s.HasOn {
			if err := writeString(onKey(i), s.On.String()); err != nil {
				return nil, err
			}
		}
		if s.HasOff {
			if err := writeString(offKey(i), s.Off.String()); err != nil {
				return nil, err
			}
		}
	}
	for _, f := range meta.tail() {
		if len(*f.value) > 0 {
			write(f.key, *f.value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Schedule is the full set of entries for one program code. Entries are
// evaluated independently and their results OR-ed together.
type Schedule []Entry

// Clone returns a copy that shares no metadata buffers with s.
func (s Schedule) Clone() Schedule {
	if s == nil {
		return nil
	}
	out := make(Schedule, len(s))
	for i, e := range s {
		for _, f := range append(e.Meta.head(), e.Meta.tail()...) {
			*f.value = slices.Clone(*f.value)
		}
		out[i] = e
	}
	return out
}

// matching returns the entries whose day range contains day.
func (s Schedule) matching(day DayOfWeek) []Entry {
	var entries []Entry
	for _, e := range s {
		if e.Days.Contains(day) {
			entries = append(entries, e)
		}
	}
	return entries
}

type payload struct {
	Data []json.RawMessage `json:"data"`
}

// ParsePayload decodes a {"data": [...]} document. Any invalid entry rejects
// the whole payload.
func ParsePayload(b []byte) (Schedule, error) {
	var p payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("failed to decode schedule payload: %w", err)
	}
	if p.Data == nil {
		return nil, fmt.Errorf("schedule payload missing data")
	}
	s := make(Schedule, 0, len(p.Data))
	for i, raw := range p.Data {
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("schedule entry %d: %w", i, err)
		}
		s = append(s, e)
	}
	return s, nil
}

// MarshalPayload encodes s as a {"data": [...]} document. Metadata is
// written back as received, without HTML escaping.
func MarshalPayload(s Schedule) ([]byte, error) {
	if s == nil {
		s = Schedule{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(struct {
		Data Schedule `json:"data"`
	}{Data: s})
	if err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
