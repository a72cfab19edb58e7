package behavioral

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Record is one decoded line of a run log. Fields are loosely typed and any
// of them may be missing; use the accessor methods instead of indexing.
type Record map[string]any

// Recognized top-level record fields
const (
	fieldTime           = "time"
	fieldWorldState     = "world_state"
	fieldAgent          = "agent"
	fieldCommand        = "command"
	fieldParsedResponse = "parsed_response"
	fieldActionResult   = "action_result"
)

var errNotObject = errors.New("not a JSON object")

// Object is a decoded JSON object that keeps its keys in document order.
// Duplicate keys keep the position of their first occurrence and the value
// of their last.
type Object struct {
	Keys   []string
	Values map[string]any
}

// MarshalJSON encodes the object with its keys in document order
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(o.Values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WorldState is the decoded world_state mapping of a record
type WorldState struct {
	TotalRescues    int      // value of "total rescues" when HasTotalRescues
	HasTotalRescues bool     // "total rescues" was present and numeric
	Rooms           []string // string form of every room_descriptions entry
	HasRooms        bool     // room_descriptions was a sequence
}

// ActionResult is the decoded action_result mapping of a record
type ActionResult struct {
	Success bool
	Reason  string
	// raw is the lowercased string form of the whole mapping, used for
	// communication detection
	raw string
}

// IsCommunication reports whether the result refers to a communication action.
// Matches "communication" anywhere in the result or "communicate" in its reason.
func (ar ActionResult) IsCommunication() bool {
	return strings.Contains(ar.raw, "communication") ||
		strings.Contains(strings.ToLower(ar.Reason), "communicate")
}

// ParseRecord decodes a single line into a Record.
// Returns false for blank lines, malformed JSON and JSON values that are not
// objects. Never panics; truncated lines are discarded whole.
func ParseRecord(line []byte) (Record, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}

	var rec Record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, false
	}
	if rec == nil {
		return nil, false
	}

	if pr, ok := rec[fieldParsedResponse].(map[string]any); ok {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err == nil {
			orderMove(pr, fields[fieldParsedResponse])
		}
	}
	return rec, true
}

// Has reports whether the field is present, regardless of its value
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Time returns the simulation clock of the record.
// Missing or non-numeric values report false.
func (r Record) Time() (float64, bool) {
	return asNumber(r[fieldTime])
}

// WorldState decodes the world_state field.
// Returns false when the field is missing or not a mapping.
func (r Record) WorldState() (WorldState, bool) {
	m, ok := r[fieldWorldState].(map[string]any)
	if !ok {
		return WorldState{}, false
	}

	var ws WorldState
	if n, ok := asNumber(m["total rescues"]); ok {
		ws.TotalRescues = int(n)
		ws.HasTotalRescues = true
	}
	if rooms, ok := m["room_descriptions"].([]any); ok {
		ws.HasRooms = true
		ws.Rooms = make([]string, 0, len(rooms))
		for _, room := range rooms {
			ws.Rooms = append(ws.Rooms, stringForm(room))
		}
	}
	return ws, true
}

// AgentName resolves the acting agent's identity.
// A mapping prefers "name", then synthesizes "agent_<entity_id>"; any other
// value uses its string form.
func (r Record) AgentName() string {
	return resolveAgentName(r[fieldAgent])
}

// AgentRole returns the agent's "role", or "unknown" when absent
func (r Record) AgentRole() string {
	m, ok := r[fieldAgent].(map[string]any)
	if !ok {
		return "unknown"
	}
	role, ok := m["role"]
	if !ok || role == nil {
		return "unknown"
	}
	return stringForm(role)
}

// ParsedResponse decodes the parsed_response field.
// A JSON-encoded string is decoded; a string that fails to decode, or any
// shape other than a mapping, yields an empty (non-nil) mapping.
func (r Record) ParsedResponse() map[string]any {
	return decodeParsedResponse(r[fieldParsedResponse])
}

// ActionResult decodes the action_result field.
// Returns false when the field is missing or not a mapping.
func (r Record) ActionResult() (ActionResult, bool) {
	m, ok := r[fieldActionResult].(map[string]any)
	if !ok {
		return ActionResult{}, false
	}

	ar := ActionResult{
		Success: truthy(m["success"]),
		raw:     strings.ToLower(stringForm(m)),
	}
	if reason, ok := m["reason"].(string); ok {
		ar.Reason = reason
	}
	return ar, true
}

// MoveDestination extracts the move target from a decoded parsed response.
// A nested object yields its "move" sub-field when set, otherwise the value
// of its first key. Responses decoded by ParseRecord keep document order;
// a plain map has no order, so its first key is taken in sorted order.
// Only string locations are reported.
func MoveDestination(response map[string]any) (string, bool) {
	var loc any
	switch nested := response["move"].(type) {
	case Object:
		loc = firstLocation(nested.Values, nested.Keys)
	case map[string]any:
		keys := make([]string, 0, len(nested))
		for k := range nested {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		loc = firstLocation(nested, keys)
	default:
		loc = nested
	}

	s, ok := loc.(string)
	return s, ok
}

func firstLocation(values map[string]any, keys []string) any {
	if inner, ok := values["move"]; ok && truthy(inner) {
		return inner
	}
	if len(keys) == 0 {
		return nil
	}
	return values[keys[0]]
}

// orderMove swaps a nested move mapping in response for an Object whose key
// order is read from raw, the encoded response object. The mapping is left
// alone when raw cannot be walked.
func orderMove(response map[string]any, raw []byte) {
	nested, ok := response["move"].(map[string]any)
	if !ok {
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return
	}
	keys, err := objectKeys(fields["move"])
	if err != nil || len(keys) != len(nested) {
		return
	}
	response["move"] = Object{Keys: keys, Values: nested}
}

// objectKeys lists the distinct keys of an encoded JSON object in document order
func objectKeys(raw []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok != json.Delim('{') {
		return nil, errNotObject
	}

	var keys []string
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errNotObject
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// CommunicateTargets extracts communicate targets from a decoded parsed response.
// The second result reports whether a communicate intent was present at all;
// a sequence yields one target per element, a bare string yields one target,
// any other value yields none.
func CommunicateTargets(response map[string]any) ([]string, bool) {
	raw, ok := response["communicate"]
	if !ok {
		return nil, false
	}

	switch v := raw.(type) {
	case []any:
		targets := make([]string, 0, len(v))
		for _, t := range v {
			targets = append(targets, stringForm(t))
		}
		return targets, true
	case string:
		return []string{v}, true
	default:
		return nil, true
	}
}

func resolveAgentName(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return stringForm(v)
	}

	if name, ok := m["name"]; ok && truthy(name) {
		return stringForm(name)
	}
	if id, ok := m["entity_id"]; ok && id != nil {
		return "agent_" + stringForm(id)
	}
	return "agent_unknown"
}

func decodeParsedResponse(v any) map[string]any {
	switch pr := v.(type) {
	case map[string]any:
		return pr
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(pr), &decoded); err != nil || decoded == nil {
			return map[string]any{}
		}
		orderMove(decoded, []byte(pr))
		return decoded
	default:
		return map[string]any{}
	}
}

// asNumber accepts JSON numbers only; booleans and numeric strings are rejected
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// truthy mirrors the loose boolean interpretation log producers rely on
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// stringForm renders any decoded JSON value as a stable string
func stringForm(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
