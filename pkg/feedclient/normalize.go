package feedclient

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Envelope is the canonical list response. Data is never nil.
type Envelope[T any] struct {
	Data       []T     `json:"data"`
	NextCursor *string `json:"nextCursor"`
	HasMore    bool    `json:"hasMore"`
	Total      int     `json:"total"`
}

// shape tags the response versions the server has shipped over time.
type shape int

const (
	shapeEmpty shape = iota
	shapeData
	shapePosts
	shapeNotifications
	shapeFollowers
	shapeFollowing
)

// listFields maps each tag to the field holding its items, in detection order:
// the current "data" field wins over any legacy one.
var listFields = []struct {
	tag   shape
	field string
}{
	{shapeData, "data"},
	{shapePosts, "posts"},
	{shapeNotifications, "notifications"},
	{shapeFollowers, "followers"},
	{shapeFollowing, "following"},
}

type response struct {
	tag    shape
	fields map[string]json.RawMessage
}

func parseResponse(body []byte) response {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return response{tag: shapeEmpty}
	}
	// Un champ présent mais qui n'est pas une liste ne masque pas le suivant.
	for _, lf := range listFields {
		if isArray(fields[lf.field]) {
			return response{tag: lf.tag, fields: fields}
		}
	}
	return response{tag: shapeEmpty, fields: fields}
}

func (r response) listField() string {
	for _, lf := range listFields {
		if lf.tag == r.tag {
			return lf.field
		}
	}
	return ""
}

// Normalize reconciles any known response shape into an Envelope. It never
// fails: absent, null or mistyped fields fall back to their defaults.
func Normalize[T any](body []byte) Envelope[T] {
	r := parseResponse(body)
	env := Envelope[T]{Data: []T{}}
	if r.tag != shapeEmpty {
		var items []T
		if err := json.Unmarshal(r.fields[r.listField()], &items); err == nil && items != nil {
			env.Data = items
		}
	}

	env.NextCursor = firstCursor(r.fields["nextCursor"], r.fields["cursor"])
	_ = decodeField(r.fields["hasMore"], &env.HasMore)

	env.Total = len(env.Data)
	var total int
	if decodeField(r.fields["total"], &total) || decodeField(r.fields["totalCount"], &total) {
		env.Total = total
	}
	return env
}

func firstCursor(candidates ...json.RawMessage) *string {
	for _, raw := range candidates {
		var s string
		if decodeField(raw, &s) && strings.TrimSpace(s) != "" {
			return &s
		}
	}
	return nil
}

// decodeField reports whether raw held a non-null value of v's type.
func decodeField(raw json.RawMessage, v any) bool {
	if !present(raw) {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func isArray(raw json.RawMessage) bool {
	var items []json.RawMessage
	return present(raw) && json.Unmarshal(raw, &items) == nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
